package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/shopfinder/internal/finder"
	"github.com/onnwee/shopfinder/internal/gate"
	"github.com/onnwee/shopfinder/internal/pager"
	"github.com/onnwee/shopfinder/internal/settings"
	"github.com/onnwee/shopfinder/internal/shop"
)

const helpText = `Commands:
  search <text>                                  search for a product
  more                                           load more shops
  settings                                       open the review settings dialog
  confirm <reviews> <km|all> [remember] [date [hh:mm am|pm]]
                                                 confirm the dialog
  cancel                                         close the dialog
  forget                                         forget the confirmed settings
  login                                          accept the login prompt
  login <token> | login <email> <password>       sign in
  later                                          dismiss the login prompt
  logout                                         sign out
  dismiss [id]                                   dismiss one or all notices
  select <n>                                     select the n-th shop
  explain <n>                                    explain the n-th shop's rating
  state                                          show the screen state
  quit                                           exit`

var errUsage = errors.New("usage")

// repl drives a finder screen from line-oriented input.
type repl struct {
	f   *finder.Finder
	out io.Writer
	now func() time.Time

	lastNotice uint64
}

func newREPL(f *finder.Finder, out io.Writer) *repl {
	return &repl{f: f, out: out, now: time.Now}
}

// run reads commands until quit, end of input or ctx is cancelled.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	r.printf("shopfinder ready; type \"help\" for commands\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-readErr
			}
			if quit := r.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the session should end.
func (r *repl) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		r.printf("%s\n", helpText)
	case "search":
		r.printOutcome(r.f.Search(ctx, strings.Join(args, " ")))
	case "more":
		err = r.loadMore(ctx)
	case "settings":
		r.printOutcome(r.f.OpenSettings())
	case "confirm":
		var next settings.ReviewSettings
		if next, err = parseSettings(args, r.now()); err == nil {
			r.printOutcome(r.f.ConfirmSettings(ctx, next))
		}
	case "cancel":
		r.printOutcome(r.f.CancelSettings())
	case "forget":
		r.f.ClearSettings()
		r.printf("settings cleared; the next search asks again\n")
	case "login":
		err = r.login(ctx, args)
	case "later":
		r.printOutcome(r.f.DismissLogin())
	case "logout":
		if err = r.f.Logout(ctx); err == nil {
			r.printf("signed out\n")
		}
	case "dismiss":
		err = r.dismiss(args)
	case "select":
		err = r.selectShop(args)
	case "explain":
		err = r.explain(ctx, args)
	case "state":
		r.printState()
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil && !errors.Is(err, errNoticeRaised) {
		r.printf("error: %v\n", err)
	}
	r.printNewNotices()
	return false
}

// errNoticeRaised marks failures the finder already reported as a notice.
var errNoticeRaised = errors.New("reported as notice")

func (r *repl) loadMore(ctx context.Context) error {
	page, sent, err := r.f.LoadMore(ctx)
	if err != nil {
		return errNoticeRaised
	}
	if !sent {
		switch {
		case page.Exhausted:
			r.printf("no more shops\n")
		case page.Loading:
			r.printf("still loading\n")
		default:
			r.printf("nothing to load; search first\n")
		}
		return nil
	}
	r.printPage(page)
	return nil
}

func (r *repl) login(ctx context.Context, args []string) error {
	var err error
	switch len(args) {
	case 0:
		r.printOutcome(r.f.AcceptLogin(ctx))
		return nil
	case 1:
		err = r.f.Login(ctx, args[0])
	case 2:
		err = r.f.LoginWithPassword(ctx, args[0], args[1])
	default:
		return fmt.Errorf("%w: login [<token> | <email> <password>]", errUsage)
	}
	if err != nil {
		return errNoticeRaised
	}
	if s := r.f.Session(); s.Usable() {
		r.printf("signed in\n")
	} else {
		r.printf("session rejected\n")
	}
	return nil
}

func (r *repl) dismiss(args []string) error {
	if len(args) == 0 {
		r.f.Dismiss(finder.DismissAll)
		return nil
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == finder.DismissAll {
		return fmt.Errorf("%w: dismiss [id]", errUsage)
	}
	if !r.f.Dismiss(id) {
		return fmt.Errorf("no notice %d", id)
	}
	return nil
}

func (r *repl) shopAt(args []string) (int, shop.Shop, error) {
	if len(args) != 1 {
		return 0, shop.Shop{}, fmt.Errorf("%w: <n>", errUsage)
	}
	n, err := strconv.Atoi(args[0])
	shops := r.f.Results().Shops
	if err != nil || n < 1 || n > len(shops) {
		return 0, shop.Shop{}, fmt.Errorf("no shop %s in a list of %d", args[0], len(shops))
	}
	return n - 1, shops[n-1], nil
}

func (r *repl) selectShop(args []string) error {
	i, _, err := r.shopAt(args)
	if err != nil {
		return err
	}
	s, err := r.f.Select(i)
	if err != nil {
		return err
	}
	r.printf("selected %s, %s\n", s.Name, s.Address)
	if km, ok := r.f.Map().DistanceToSelected(); ok {
		r.printf("  %.1f km away\n", km)
	}
	if url, ok := r.f.Map().DirectionsToSelected(); ok {
		r.printf("  directions: %s\n", url)
	}
	return nil
}

func (r *repl) explain(ctx context.Context, args []string) error {
	_, s, err := r.shopAt(args)
	if err != nil {
		return err
	}
	e, err := r.f.Explain(ctx, s)
	if err != nil {
		return errNoticeRaised
	}
	if len(e) == 0 {
		r.printf("no explanation for %s\n", s.Name)
		return nil
	}
	r.printf("why %s is rated %.1f:\n", s.Name, s.PredictedRating)
	for _, tw := range e {
		r.printf("  %+.3f  %s\n", tw.Weight, tw.Token)
	}
	return nil
}

func (r *repl) printOutcome(out gate.Outcome) {
	// Other failures are printed as notices.
	if errors.Is(out.Err, gate.ErrInvalidTransition) {
		r.printf("not now (%s)\n", out.State)
		return
	}

	switch out.State {
	case gate.AwaitingSettingsConfirmation:
		current, _ := r.f.Settings()
		r.printf("review settings: %s reviews, coverage %s%s\n",
			current.ReviewCount, current.Coverage, rememberSuffix(current))
		r.printf("confirm <reviews> <km|all> [remember] [date [hh:mm am|pm]] or cancel\n")
	case gate.AwaitingLogin:
		r.printf("remembering settings needs a login: \"login\" to sign in, \"later\" to skip\n")
	}
	if out.Page != nil && out.Err == nil {
		r.printPage(*out.Page)
	}
}

func (r *repl) printPage(page pager.Page) {
	if len(page.Shops) == 0 {
		r.printf("no shops found for %q\n", page.Query)
		return
	}
	for i, s := range page.Shops {
		r.printf("%2d. %s (%.1f, predicted %.1f) %s\n", i+1, s.Name, s.Rating, s.PredictedRating, s.Address)
	}
	if page.Exhausted {
		r.printf("end of results\n")
	}
}

func (r *repl) printState() {
	v := r.f.Snapshot()
	r.printf("gate: %s\n", v.Gate)
	if v.Query != "" {
		r.printf("query: %q, %d shops, exhausted %v\n", v.Query, len(v.Shops), v.Exhausted)
	}
	current, known := r.f.Settings()
	r.printf("settings: %s reviews, coverage %s, known %v%s\n",
		current.ReviewCount, current.Coverage, known, rememberSuffix(current))
	if current.Opening.Active() {
		r.printf("open on: %s %s\n", current.Opening.DateString(), current.Opening.TimeString())
	}
	s := r.f.Session()
	r.printf("session: signed in %v, confirmed %v\n", s.Usable(), s.Confirmed)
	if v.Origin != nil {
		r.printf("location: acquired\n")
	} else {
		r.printf("location: unknown\n")
	}
	r.printf("map centre: %s\n", v.Center)
	for _, n := range v.Notices {
		r.printf("notice %d: %s\n", n.ID, n.Message)
	}
}

func (r *repl) printNewNotices() {
	for _, n := range r.f.Notices() {
		if n.ID <= r.lastNotice {
			continue
		}
		r.lastNotice = n.ID
		r.printf("! [%d] %s\n", n.ID, n.Message)
	}
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func rememberSuffix(s settings.ReviewSettings) string {
	if s.RememberSettings {
		return ", remembered"
	}
	return ""
}

// parseSettings reads "<reviews> <km|all> [remember] [date [hh:mm am|pm]]".
// Dates are YYYY-MM-DD or "today".
func parseSettings(args []string, now time.Time) (settings.ReviewSettings, error) {
	usage := fmt.Errorf("%w: confirm <reviews> <km|all> [remember] [date [hh:mm am|pm]]", errUsage)
	if len(args) < 2 {
		return settings.ReviewSettings{}, usage
	}

	var next settings.ReviewSettings
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return next, fmt.Errorf("%w: %q", settings.ErrInvalidReviewCount, args[0])
	}
	if next.ReviewCount, err = settings.ReviewCountOf(n); err != nil {
		return next, err
	}

	if strings.EqualFold(args[1], "all") {
		next.Coverage = settings.AllCoverage()
	} else {
		km, err := strconv.ParseFloat(strings.TrimSuffix(strings.ToLower(args[1]), "km"), 64)
		if err != nil {
			return next, fmt.Errorf("%w: %q", settings.ErrInvalidCoverage, args[1])
		}
		if next.Coverage, err = settings.CoverageOf(km); err != nil {
			return next, err
		}
	}

	rest := args[2:]
	if len(rest) > 0 && strings.EqualFold(rest[0], "remember") {
		next.RememberSettings = true
		rest = rest[1:]
	}
	if len(rest) == 0 {
		next.Opening = shop.NoFilter()
		return next, nil
	}

	var date time.Time
	if strings.EqualFold(rest[0], "today") {
		date = now
	} else if date, err = time.ParseInLocation(shop.DateLayout, rest[0], now.Location()); err != nil {
		return next, fmt.Errorf("%w: date %q", settings.ErrInvalidFilter, rest[0])
	}
	if len(rest) == 1 {
		next.Opening = shop.OnDate(date)
		return next, nil
	}
	if len(rest) > 3 {
		return next, usage
	}
	clock, err := shop.ParseClock12(strings.Join(rest[1:], ""))
	if err != nil {
		return next, fmt.Errorf("%w: %w", settings.ErrInvalidFilter, err)
	}
	next.Opening = shop.AtDateTime(date, clock)
	return next, nil
}
