package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/app"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/attach"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/chat"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/coach"
	livectl "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/live"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
)

// errQuit ends the REPL after /quit or end of input.
var errQuit = errors.New("quit")

const helpText = `commands:
  /modes                  list coaching modes
  /mode <id>              switch the active session to a mode
  /new [mode]             start a new session
  /sessions               list sessions
  /open <id>              select a session
  /live                   start a voice conversation
  /stop                   end the voice conversation
  /attach <path>          attach a file to the live call or the next message
  /image <aspect> <text>  generate an image (aspect e.g. 1:1, 16:9)
  /edit <path> <text>     edit an image
  /speak                  read the last reply aloud
  /suggest                ask which mode fits this conversation
  /export <path>          write a backup
  /import <path>          load a backup
  /status                 run the readiness checks
  /quit                   exit
anything else is sent to the coach.`

// repl reads commands line by line and drives the application.
type repl struct {
	app    *app.App
	in     io.Reader
	out    io.Writer
	loader attach.Loader

	// pending is attached to the next chat message.
	pending *live.AttachedFile
}

func newREPL(a *app.App, in io.Reader, out io.Writer) *repl {
	return &repl{app: a, in: in, out: &syncWriter{w: out}}
}

// syncWriter serialises writes from the command loop and the live watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Run processes input until /quit, end of input or ctx is done. It returns
// errQuit when the user asked to leave.
func (r *repl) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 64<<10), 1<<20)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(r.out, "Dr. Arvin is ready. Type /help for commands.")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := r.handle(ctx, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					return err
				}
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return r.send(ctx, line)
	}

	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/quit", "/exit":
		return errQuit
	case "/modes":
		for _, m := range chat.Modes() {
			fmt.Fprintf(r.out, "  %-22s %s\n", m, m.Title())
		}
	case "/mode":
		return r.setMode(ctx, rest)
	case "/new":
		return r.newSession(ctx, rest)
	case "/sessions":
		r.listSessions()
	case "/open":
		sess, err := r.app.Select(rest)
		if err != nil {
			return err
		}
		r.printSession(sess)
	case "/live":
		sess, err := r.app.StartLive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "live: talking in %q, /stop to end\n", sess.Title)
		go r.watchLive(ctx, r.app.Live().Done())
	case "/stop":
		r.app.StopLive()
		fmt.Fprintln(r.out, "live: stopped")
	case "/attach":
		return r.attach(ctx, rest)
	case "/image":
		return r.image(ctx, rest)
	case "/edit":
		return r.edit(ctx, rest)
	case "/speak":
		return r.speak(ctx)
	case "/suggest":
		return r.suggest(ctx)
	case "/export":
		return r.export(rest)
	case "/import":
		return r.importBackup(ctx, rest)
	case "/status":
		r.status(ctx)
	default:
		return fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return nil
}

// watchLive reports a conversation that ended with an error, such as a
// failed connect or a dropped connection.
func (r *repl) watchLive(ctx context.Context, done <-chan struct{}) {
	select {
	case <-done:
	case <-ctx.Done():
		return
	}
	if err := r.app.Live().Err(); err != nil {
		fmt.Fprintf(r.out, "live ended: %v\n", err)
	}
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (r *repl) setMode(ctx context.Context, arg string) error {
	mode, err := chat.ParseMode(arg)
	if err != nil {
		return err
	}
	if err := r.app.SetMode(ctx, mode); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "mode: %s\n", mode.Title())
	return nil
}

func (r *repl) newSession(ctx context.Context, arg string) error {
	mode := chat.ModeNormal
	if arg != "" {
		m, err := chat.ParseMode(arg)
		if err != nil {
			return err
		}
		mode = m
	}
	sess, err := r.app.NewSession(ctx, mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "new session %s (%s)\n", sess.ID, mode.Title())
	return nil
}

func (r *repl) listSessions() {
	active, _ := r.app.Active()
	sessions := r.app.Chats().Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(r.out, "no sessions yet")
		return
	}
	for _, s := range sessions {
		mark := " "
		if s.ID == active.ID {
			mark = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %-32s %s (%d messages)\n", mark, s.ID, s.Title, s.Mode.Title(), len(s.Messages))
	}
}

func (r *repl) printSession(sess chat.Session) {
	fmt.Fprintf(r.out, "%s [%s]\n", sess.Title, sess.Mode.Title())
	for _, m := range sess.Messages {
		fmt.Fprintf(r.out, "%s: %s\n", m.Role, m.Content)
		if m.ImageURL != "" {
			fmt.Fprintf(r.out, "  image: %s\n", shortURL(m.ImageURL))
		}
	}
}

// ── Chat ─────────────────────────────────────────────────────────────────────

func (r *repl) send(ctx context.Context, text string) error {
	sess, err := r.app.ActiveOrNew(ctx, chat.ModeNormal)
	if err != nil {
		return err
	}
	req := coach.Request{SessionID: sess.ID, Text: text, File: r.pending}
	r.pending = nil

	printed := 0
	res, err := r.app.Coach().Send(ctx, req, func(m chat.Message) {
		if len(m.Content) > printed {
			fmt.Fprint(r.out, m.Content[printed:])
			printed = len(m.Content)
		}
	})
	if printed == 0 && res.Reply.Content != "" {
		fmt.Fprint(r.out, res.Reply.Content)
	}
	fmt.Fprintln(r.out)
	if err != nil {
		return err
	}
	if res.Reply.ImageURL != "" {
		fmt.Fprintf(r.out, "image: %s\n", shortURL(res.Reply.ImageURL))
	}
	if s := res.Suggestion; s != nil {
		fmt.Fprintf(r.out, "suggestion: %s (%s), /mode %s\n", s.Label, s.Reason, s.Mode)
	}
	return nil
}

func (r *repl) attach(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: /attach <path>")
	}
	f, err := r.loader.Load(ctx, path)
	if err != nil {
		return err
	}
	if lc := r.app.Live(); lc != nil && lc.State() != livectl.StateIdle {
		if err := r.app.QueueLiveFile(f); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "sent %s to the live call\n", f.Name)
		return nil
	}
	r.pending = &f
	fmt.Fprintf(r.out, "attached %s (%s) to your next message\n", f.Name, f.MIMEType)
	return nil
}

func (r *repl) image(ctx context.Context, arg string) error {
	aspect, prompt, _ := strings.Cut(arg, " ")
	if !strings.Contains(aspect, ":") {
		aspect, prompt = coach.DefaultAspectRatio, arg
	}
	sess, err := r.app.ActiveOrNew(ctx, chat.ModeImageGeneration)
	if err != nil {
		return err
	}
	msg, err := r.app.Coach().GenerateImage(ctx, sess.ID, strings.TrimSpace(prompt), aspect)
	if err != nil {
		return err
	}
	r.printImage(msg)
	return nil
}

func (r *repl) edit(ctx context.Context, arg string) error {
	path, prompt, _ := strings.Cut(arg, " ")
	if path == "" || strings.TrimSpace(prompt) == "" {
		return errors.New("usage: /edit <path> <instructions>")
	}
	f, err := r.loader.Load(ctx, path)
	if err != nil {
		return err
	}
	sess, err := r.app.ActiveOrNew(ctx, chat.ModeImageEditing)
	if err != nil {
		return err
	}
	msg, err := r.app.Coach().EditImage(ctx, sess.ID, strings.TrimSpace(prompt), f)
	if err != nil {
		return err
	}
	r.printImage(msg)
	return nil
}

func (r *repl) printImage(msg chat.Message) {
	if msg.Content != "" {
		fmt.Fprintln(r.out, msg.Content)
	}
	if msg.ImageURL != "" {
		fmt.Fprintf(r.out, "image: %s\n", shortURL(msg.ImageURL))
	}
}

func (r *repl) speak(ctx context.Context) error {
	sess, err := r.app.Active()
	if err != nil {
		return err
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if m := sess.Messages[i]; m.Role == chat.RoleModel && m.Content != "" {
			return r.app.Coach().Speak(ctx, m.Content)
		}
	}
	return errors.New("nothing to read yet")
}

func (r *repl) suggest(ctx context.Context) error {
	sess, err := r.app.Active()
	if err != nil {
		return err
	}
	s, err := r.app.Coach().Suggest(ctx, sess.ID)
	if err != nil {
		return err
	}
	if s == nil {
		fmt.Fprintln(r.out, "no suggestion")
		return nil
	}
	fmt.Fprintf(r.out, "suggestion: %s (%s), /mode %s\n", s.Label, s.Reason, s.Mode)
	return nil
}

// ── Backup ───────────────────────────────────────────────────────────────────

func (r *repl) export(path string) error {
	if path == "" {
		return errors.New("usage: /export <path>")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.app.Chats().Export(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "exported to %s\n", path)
	return nil
}

func (r *repl) importBackup(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("usage: /import <path>")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	res, err := r.app.Chats().Import(ctx, f)
	if err != nil {
		return err
	}
	if res.FirstID != "" {
		if _, err := r.app.Select(res.FirstID); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "imported %d sessions", res.Sessions)
	if res.Profile {
		fmt.Fprint(r.out, " and the profile")
	}
	fmt.Fprintln(r.out)
	return nil
}

// shortURL keeps data URLs from flooding the terminal.
func shortURL(u string) string {
	if strings.HasPrefix(u, "data:") && len(u) > 48 {
		return u[:48] + "..."
	}
	return u
}

func (r *repl) status(ctx context.Context) {
	rep := r.app.Health().Run(ctx)
	fmt.Fprintln(r.out, rep.Status)
	names := slices.Sorted(maps.Keys(rep.Checks))
	for _, name := range names {
		fmt.Fprintf(r.out, "  %-8s %s\n", name, rep.Checks[name])
	}
}
