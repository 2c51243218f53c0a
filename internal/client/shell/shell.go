// Package shell is the interactive view layer of the client. It renders the
// route group chosen by the session gate as a prompt and offers the commands
// of that group.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beitak/beitak/internal/apperr"
	"github.com/beitak/beitak/internal/client/onboarding"
	"github.com/beitak/beitak/internal/client/session"
	"github.com/beitak/beitak/internal/models"
)

// Auth is the sign-in surface the shell drives.
type Auth interface {
	SendMagicLink(ctx context.Context, email string) error
	VerifyCode(ctx context.Context, email, code string) error
	HandleDeepLink(ctx context.Context, link string) error
	SignUp(ctx context.Context, fullName, email, password, confirm string) error
	SignIn(ctx context.Context, email, password string) error
	SignInWithIDToken(ctx context.Context, provider, idToken string) error
	ResetPassword(ctx context.Context, email string) error
	ConfirmReset(ctx context.Context, email, code, password string) error
	SignOut(ctx context.Context) error
}

// Profiles is the profile adapter as used by the view.
type Profiles interface {
	onboarding.ProfileStore
	Invalidate()
}

// Gate is the part of the session gate the view talks to.
type Gate interface {
	Enter(group session.RouteGroup) session.Decision
	MarkOnboarded() session.Decision
	Snapshot() session.Snapshot
}

type command struct {
	usage  string
	groups []session.RouteGroup // nil means every group
	run    func(ctx context.Context, args []string) error
}

// Shell reads commands from in and writes to out.
type Shell struct {
	auth        Auth
	profiles    Profiles
	gate        Gate
	log         *zap.Logger
	stepTimeout time.Duration

	prompt   *prompter
	outMu    sync.Mutex
	out      io.Writer
	commands map[string]command

	mu      sync.Mutex
	seq     *onboarding.Sequencer
	seqUser string
}

// New returns a shell. Bind must be called with the gate before Run; the
// shell itself is the gate's Navigator and Notifier.
func New(in io.Reader, out io.Writer, auth Auth, profiles Profiles, log *zap.Logger, stepTimeout time.Duration) *Shell {
	s := &Shell{
		auth:        auth,
		profiles:    profiles,
		log:         log,
		stepTimeout: stepTimeout,
		out:         out,
	}
	s.prompt = &prompter{sc: bufio.NewScanner(in), print: s.printf}
	s.commands = s.commandTable()
	return s
}

// Bind attaches the session gate.
func (s *Shell) Bind(g Gate) {
	s.gate = g
}

// Navigate implements session.Navigator.
func (s *Shell) Navigate(group session.RouteGroup) {
	if group == session.GroupAuth {
		s.mu.Lock()
		s.seq, s.seqUser = nil, ""
		s.mu.Unlock()
		s.profiles.Invalidate()
	}
	s.printf("\n== %s ==\n", banner(group))
}

// Notify implements session.Notifier: errors are shown as alerts and the
// user decides whether to retry.
func (s *Shell) Notify(err error) {
	s.printf("! %s\n", describe(err))
}

// Run executes commands until exit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	s.printf("Beitak. Type 'help' for commands.\n")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printf("%s", s.promptLine())
		if !s.prompt.sc.Scan() {
			return s.prompt.sc.Err()
		}
		args := strings.Fields(s.prompt.sc.Text())
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			s.printf("Bye\n")
			return nil
		}
		if err := s.dispatch(ctx, args); err != nil {
			if errors.Is(err, errAborted) {
				return nil
			}
			s.Notify(err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, args []string) error {
	cmd, ok := s.commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", args[0])
	}
	snap := s.gate.Snapshot()
	if snap.Decision.Loading && cmd.groups != nil {
		return errors.New("still checking your session, try again in a moment")
	}
	if !allowed(cmd.groups, snap.Group) {
		return fmt.Errorf("'%s' is not available in %s", args[0], banner(snap.Group))
	}
	return cmd.run(ctx, args[1:])
}

func allowed(groups []session.RouteGroup, g session.RouteGroup) bool {
	if groups == nil {
		return true
	}
	for _, x := range groups {
		if x == g {
			return true
		}
	}
	return false
}

func (s *Shell) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) promptLine() string {
	snap := s.gate.Snapshot()
	if snap.Decision.Loading {
		return "beitak(loading)> "
	}
	switch snap.Group {
	case session.GroupAuth:
		return "beitak(sign in)> "
	case session.GroupOnboarding:
		s.mu.Lock()
		seq := s.seq
		s.mu.Unlock()
		if seq != nil {
			return fmt.Sprintf("beitak(onboarding:%s)> ", seq.Current())
		}
		return "beitak(onboarding)> "
	}
	return "beitak> "
}

func banner(g session.RouteGroup) string {
	switch g {
	case session.GroupAuth:
		return "Sign in"
	case session.GroupOnboarding:
		return "Onboarding"
	case session.GroupMainApp:
		return "Beitak"
	}
	return "Welcome"
}

// describe turns an error into the alert text shown to the user.
func describe(err error) string {
	var (
		ve *apperr.ValidationError
		se *apperr.StoreError
		ae *apperr.AuthError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, apperr.ErrSubmissionPending):
		return "your answers are still being saved, please wait"
	case errors.Is(err, apperr.ErrStepMismatch):
		return "those answers are for another step"
	case errors.Is(err, apperr.ErrOnboardingDone):
		return "onboarding is already complete"
	case errors.As(err, &se):
		if se.Retryable {
			return fmt.Sprintf("could not reach the server (%v), please try again", se.Err)
		}
		return fmt.Sprintf("%s failed: %v", se.Op, se.Err)
	case errors.As(err, &ae):
		return fmt.Sprintf("%s failed: %v", ae.Op, ae.Err)
	}
	return err.Error()
}

// sequencer returns the onboarding sequencer of the signed-in user,
// resuming it from the stored profile on first use.
func (s *Shell) sequencer(ctx context.Context) (*onboarding.Sequencer, error) {
	snap := s.gate.Snapshot()
	if !snap.Session.IsAuthenticated() {
		return nil, apperr.ErrUnauthorized
	}
	uid := snap.Session.UserID

	s.mu.Lock()
	if s.seq != nil && s.seqUser == uid {
		seq := s.seq
		s.mu.Unlock()
		return seq, nil
	}
	s.mu.Unlock()

	seq := onboarding.New(s.profiles, uid, s.log,
		onboarding.WithTimeout(s.stepTimeout),
		onboarding.OnComplete(func() { s.gate.MarkOnboarded() }),
	)
	step, err := seq.Resume(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.seq, s.seqUser = seq, uid
	s.mu.Unlock()

	if step == models.StepDone {
		s.gate.MarkOnboarded()
	}
	return seq, nil
}

func (s *Shell) commandTable() map[string]command {
	auth := []session.RouteGroup{session.GroupAuth}
	onb := []session.RouteGroup{session.GroupOnboarding}
	mainApp := []session.RouteGroup{session.GroupMainApp}
	signedIn := []session.RouteGroup{session.GroupOnboarding, session.GroupMainApp}

	cmds := map[string]command{
		"help":    {usage: "help", run: s.help},
		"status":  {usage: "status", run: s.status},
		"open":    {usage: "open <auth|onboarding|main>", run: s.open},
		"link":    {usage: "link <url>", run: s.link},
		"login":   {usage: "login <email>", groups: auth, run: s.login},
		"verify":  {usage: "verify <email> <code>", groups: auth, run: s.verify},
		"signup":  {usage: "signup", groups: auth, run: s.signUp},
		"signin":  {usage: "signin <email>", groups: auth, run: s.signIn},
		"reset":   {usage: "reset <email>", groups: auth, run: s.reset},
		"oauth":   {usage: "oauth <provider> <id_token>", groups: auth, run: s.oauth},
		"step":    {usage: "step", groups: onb, run: s.step},
		"skip":    {usage: "skip", groups: onb, run: s.skip},
		"back":    {usage: "back", groups: onb, run: s.back},
		"profile": {usage: "profile", groups: mainApp, run: s.showProfile},
		"logout":  {usage: "logout", groups: signedIn, run: s.logout},
	}
	for _, tab := range []string{"browse", "discover", "chat", "menu", "settings"} {
		name := tab
		cmds[name] = command{usage: name, groups: mainApp, run: func(context.Context, []string) error {
			s.printf("%s: coming soon\n", name)
			return nil
		}}
	}
	return cmds
}

func (s *Shell) help(context.Context, []string) error {
	group := s.gate.Snapshot().Group
	var usages []string
	for _, c := range s.commands {
		if c.groups != nil && allowed(c.groups, group) {
			usages = append(usages, c.usage)
		}
	}
	sort.Strings(usages)
	s.printf("Commands here: %s\n", strings.Join(usages, ", "))
	s.printf("Anywhere: help, status, open <group>, link <url>, exit\n")
	return nil
}

func (s *Shell) status(context.Context, []string) error {
	snap := s.gate.Snapshot()
	s.printf("session:   %s\n", snap.Session.Status)
	if snap.Session.IsAuthenticated() {
		s.printf("user:      %s\n", snap.Session.UserID)
		s.printf("onboarded: %t\n", snap.Onboarded)
	}
	s.printf("screen:    %s\n", banner(snap.Group))
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()
	if seq != nil && snap.Group == session.GroupOnboarding {
		s.printf("step:      %s (furthest %s)\n", seq.Current(), seq.Furthest())
	}
	return nil
}

func (s *Shell) open(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: open <auth|onboarding|main>")
	}
	var g session.RouteGroup
	switch args[0] {
	case "auth":
		g = session.GroupAuth
	case "onboarding":
		g = session.GroupOnboarding
	case "main":
		g = session.GroupMainApp
	default:
		return fmt.Errorf("unknown screen %q", args[0])
	}
	if d := s.gate.Enter(g); d.Redirects() {
		s.printf("%s is not available, redirected to %s\n", banner(g), banner(d.RedirectTo))
	}
	return nil
}

func (s *Shell) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: login <email>")
	}
	if err := s.auth.SendMagicLink(ctx, args[0]); err != nil {
		return err
	}
	s.printf("Check your email for a sign-in link. Paste it with 'link <url>' or enter the code with 'verify <email> <code>'.\n")
	return nil
}

func (s *Shell) verify(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: verify <email> <code>")
	}
	return s.auth.VerifyCode(ctx, args[0], args[1])
}

func (s *Shell) link(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: link <url>")
	}
	return s.auth.HandleDeepLink(ctx, args[0])
}

func (s *Shell) signUp(ctx context.Context, _ []string) error {
	name, err := s.prompt.line("Full name")
	if err != nil {
		return err
	}
	email, err := s.prompt.line("Email")
	if err != nil {
		return err
	}
	pw, err := s.prompt.line("Password")
	if err != nil {
		return err
	}
	confirm, err := s.prompt.line("Confirm password")
	if err != nil {
		return err
	}
	return s.auth.SignUp(ctx, name, email, pw, confirm)
}

func (s *Shell) signIn(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: signin <email>")
	}
	pw, err := s.prompt.line("Password")
	if err != nil {
		return err
	}
	return s.auth.SignIn(ctx, args[0], pw)
}

// oauth takes the ID token a provider's native sign-in returned.
func (s *Shell) oauth(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: oauth <provider> <id_token>")
	}
	return s.auth.SignInWithIDToken(ctx, args[0], args[1])
}

func (s *Shell) reset(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: reset <email>")
	}
	email := args[0]
	if err := s.auth.ResetPassword(ctx, email); err != nil {
		return err
	}
	s.printf("If an account exists for %s, a reset code is on its way.\n", email)
	code, err := s.prompt.line("Reset code (empty to finish later)")
	if err != nil || code == "" {
		return err
	}
	pw, err := s.prompt.line("New password")
	if err != nil {
		return err
	}
	if err := s.auth.ConfirmReset(ctx, email, code, pw); err != nil {
		return err
	}
	s.printf("Password updated. Sign in with 'signin %s'.\n", email)
	return nil
}

func (s *Shell) step(ctx context.Context, _ []string) error {
	seq, err := s.sequencer(ctx)
	if err != nil {
		return err
	}
	cur := seq.Current()
	if cur == models.StepDone {
		return apperr.ErrOnboardingDone
	}
	s.printf("%s\n", stepTitles[cur])
	answers, err := s.prompt.collect(cur)
	if err != nil {
		return err
	}
	next, err := seq.Advance(ctx, answers)
	if err != nil {
		return err
	}
	s.printf("Saved. Next: %s\n", stepTitles[next])
	return nil
}

func (s *Shell) skip(ctx context.Context, _ []string) error {
	seq, err := s.sequencer(ctx)
	if err != nil {
		return err
	}
	next, err := seq.Skip(ctx)
	if err != nil {
		return err
	}
	s.printf("Skipped. Next: %s\n", stepTitles[next])
	return nil
}

func (s *Shell) back(ctx context.Context, _ []string) error {
	seq, err := s.sequencer(ctx)
	if err != nil {
		return err
	}
	s.printf("Back to: %s\n", stepTitles[seq.Back()])
	return nil
}

func (s *Shell) showProfile(ctx context.Context, _ []string) error {
	snap := s.gate.Snapshot()
	p, err := s.profiles.Fetch(ctx, snap.Session.UserID)
	if err != nil {
		return err
	}
	s.printf("%s", formatProfile(p))
	return nil
}

func (s *Shell) logout(ctx context.Context, _ []string) error {
	return s.auth.SignOut(ctx)
}

func formatProfile(p models.Profile) string {
	var b strings.Builder
	row := func(label string, v any) {
		fmt.Fprintf(&b, "%-20s %v\n", label+":", v)
	}
	row("Name", deref(p.FullName))
	row("Age", deref(p.Age))
	row("Gender", deref(p.Gender))
	var loc []string
	for _, v := range []*string{p.City, p.Country} {
		if v != nil {
			loc = append(loc, *v)
		}
	}
	if len(loc) == 0 {
		loc = []string{"-"}
	}
	row("Location", strings.Join(loc, ", "))
	row("Smoking", deref(p.Smoking))
	row("Drinking", deref(p.Drinking))
	row("Diet", deref(p.Diet))
	row("Prayer", deref(p.Prayer))
	row("Religiosity", deref(p.Religiosity))
	row("Bio", deref(p.Bio))
	row("Marriage timeline", deref(p.MarriageTimeline))
	row("Wants children", deref(p.WantChildren))
	if p.WillingToRelocate != nil {
		row("Willing to relocate", *p.WillingToRelocate)
	}
	row("Photos", len(p.PhotoURLs))
	row("Phone verified", p.PhoneVerified)
	return b.String()
}

func deref[T any](v *T) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}
