package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coder6688/wenxuecity-tts/internal/lang"
	"github.com/coder6688/wenxuecity-tts/internal/news"
	"github.com/coder6688/wenxuecity-tts/internal/tts"
)

var (
	readNoContinue bool
	readQuiet      bool

	readCmd = &cobra.Command{
		Use:   "read [URL|FILE|-]",
		Short: "Read an article, a file or stdin aloud without the TUI",
		Long: paragraph(fmt.Sprintf("\nRead a single %s, a local %s or %s aloud and print each segment as it is spoken.\nWith %s the Nth headline is read and playback continues down the list.",
			keyword("article URL"), keyword("text file"), keyword("stdin"), keyword("--news N"))),
		Example: paragraph("wxc-tts read --news 3\nwxc-tts read https://www.wenxuecity.com/news/2024/01/01/123.html\necho 你好 | wxc-tts read -"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runRead,
	}
)

func runRead(cmd *cobra.Command, args []string) error {
	switch {
	case len(args) == 0 && newsIndex == 0:
		return errors.New("nothing to read: pass a URL, a file, - for stdin, or --news N")
	case len(args) == 1 && newsIndex > 0:
		return errors.New("use either an argument or --news, not both")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if readNoContinue {
		cfg.AutoContinue = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := tts.NewChannelSink()
	defer events.Close()

	r, err := newReader(cfg, tts.MultiSink{tts.LogSink{Logger: log.WithPrefix("events")}, events})
	if err != nil {
		return err
	}
	defer r.Close() //nolint:errcheck

	p := newPrinter(cmd.OutOrStdout(), readQuiet)

	switch {
	case newsIndex > 0:
		items, err := r.client.Headlines(ctx)
		if err != nil {
			return err
		}
		r.chain.LoadBacklog(items)
		if err := r.chain.SelectIndex(ctx, newsIndex-1); err != nil {
			return err
		}
		return p.follow(ctx, events.Events(), func(tts.Event) bool {
			i := r.chain.ActiveIndex()
			return !r.chain.AutoContinue() || i == tts.NotTracked || i >= len(r.chain.Backlog())-1
		})

	case args[0] == "-":
		s, err := readStdin(ctx, cmd.InOrStdin(), cfg, r.synth, events)
		if err != nil {
			return err
		}
		err = p.follow(ctx, events.Events(), func(tts.Event) bool { return true })
		if shutdownErr := s.Shutdown(cfg.StopTimeout); shutdownErr != nil && !errors.Is(shutdownErr, tts.ErrForcedStop) {
			return errors.Join(err, shutdownErr)
		}
		return err

	default:
		if err := r.chain.Submit(ctx, args[0]); err != nil {
			return err
		}
		return p.follow(ctx, events.Events(), func(tts.Event) bool { return true })
	}
}

// readStdin starts a standalone session over everything read from in.
func readStdin(ctx context.Context, in io.Reader, cfg tts.Config, synth tts.Synthesizer, sink tts.Sink) (*tts.Session, error) {
	text, err := news.ReadAll(in, false)
	if err != nil {
		return nil, err
	}
	segments := tts.NewSegmenter().Segment(tts.Prepare(text, cfg.CharLimit))
	if len(segments) == 0 {
		return nil, errors.New("nothing to read on stdin")
	}

	return tts.StartSession(ctx, tts.SessionConfig{
		Segments:    segments,
		Synthesizer: synth,
		Classifier: lang.NewClassifier(
			lang.WithThreshold(cfg.ConfidenceThreshold),
			lang.WithFallback(cfg.FallbackLanguage),
			lang.WithLanguages(cfg.Languages...),
		),
		Policy:          cfg.Policy(),
		Language:        cfg.Language,
		InitialLanguage: cfg.InitialLanguage(),
		AutoDetect:      cfg.AutoDetect,
		Volume:          tts.NewVolume(cfg.Volume, cfg.VolumeStep),
		Sink:            tts.MultiSink{tts.LogSink{Logger: log.WithPrefix("events")}, sink},
	})
}

// printer writes playback events to a terminal.
type printer struct {
	out   *termenv.Output
	quiet bool
}

func newPrinter(w io.Writer, quiet bool) *printer {
	var opts []termenv.OutputOption
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		opts = append(opts, termenv.WithProfile(termenv.Ascii))
	}
	return &printer{out: termenv.NewOutput(w, opts...), quiet: quiet}
}

func (p *printer) print(ev tts.Event) {
	switch ev.Kind {
	case tts.EventProgress:
		if p.quiet {
			return
		}
		pos := p.out.String(fmt.Sprintf("[%d/%d %s]", ev.Position, ev.Total, ev.Language)).Faint()
		fmt.Fprintf(p.out, "%s %s\n", pos, ev.Text)
	case tts.EventLanguageChanged, tts.EventVolumeChanged:
		if p.quiet {
			return
		}
		fmt.Fprintln(p.out, p.out.String(ev.String()).Faint())
	case tts.EventItemStarted, tts.EventCue:
		fmt.Fprintln(p.out, p.out.String(ev.String()).Bold())
	case tts.EventError, tts.EventForcedStop:
		fmt.Fprintln(p.out, p.out.String(ev.String()).Foreground(p.out.Color("1")))
	default:
		fmt.Fprintln(p.out, ev.String())
	}
}

// follow prints events until playback ends. A completion ends it only when
// last reports that nothing follows.
func (p *printer) follow(ctx context.Context, events <-chan tts.Event, last func(tts.Event) bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.print(ev)

			switch ev.Kind {
			case tts.EventError:
				return ev.Err
			case tts.EventCancelled, tts.EventForcedStop:
				return nil
			case tts.EventCompleted:
				if last(ev) {
					return nil
				}
			}
		}
	}
}

func init() {
	readCmd.Flags().BoolVar(&readNoContinue, "no-continue", false, "stop after the first article")
	readCmd.Flags().BoolVarP(&readQuiet, "quiet", "q", false, "only print article and status changes")
}
