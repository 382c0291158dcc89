package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/soyeahso/botkit/internal/chat"
	"github.com/soyeahso/botkit/internal/domain"
	"github.com/soyeahso/botkit/internal/vec"
)

// streamPrinter is a chat plugin writing bot replies to out while they are
// streamed. Only the text added by each snapshot is written.
type streamPrinter struct {
	chat.BasePlugin
	out io.Writer

	mu      sync.Mutex
	text    string
	written bool
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

func (p *streamPrinter) OnStateMutation(change chat.Change, _ *chat.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range change.MessageEffects() {
		switch e.Kind {
		case vec.EffectInsert:
			for _, m := range e.Items {
				if m.From.Kind == domain.EntityBot {
					p.text = ""
				}
			}
		case vec.EffectUpdate:
			if e.To.From.Kind != domain.EntityBot {
				continue
			}
			p.write(e.From, e.To)
		}
	}
}

func (p *streamPrinter) write(from, m domain.Message) {
	text := m.Content.Text
	if rest, ok := strings.CutPrefix(text, p.text); ok {
		fmt.Fprint(p.out, rest)
	} else {
		// Reworded by the backend: start over on a new line.
		fmt.Fprint(p.out, "\n"+text)
	}
	p.text = text
	p.written = p.written || text != ""

	// Attachments are listed once, when the reply completes.
	if m.Metadata.IsWriting || !from.Metadata.IsWriting {
		return
	}
	for _, a := range m.Content.Attachments {
		fmt.Fprintf(p.out, "\n[attachment %s, %s, %d bytes]", a.Name, a.ContentType, len(a.Content))
		p.written = true
	}
}

// finish ends the printed reply with a newline.
func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written {
		fmt.Fprintln(p.out)
	}
	p.text, p.written = "", false
}
