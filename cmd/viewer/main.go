package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/faeln1/go-checkin-api/internal/config"
	"github.com/faeln1/go-checkin-api/internal/domain/attendance"
	"github.com/faeln1/go-checkin-api/internal/platform/terminal"
	"github.com/faeln1/go-checkin-api/internal/rosterclient"
	"github.com/faeln1/go-checkin-api/pkg/logger"
	"github.com/joho/godotenv"
)

type viewer struct {
	api        *rosterclient.APIClient
	cache      *rosterclient.Cache
	supervisor *rosterclient.Supervisor
	reconciler *rosterclient.Reconciler
	coord      *rosterclient.Coordinator
	out        io.Writer

	pushMu  sync.Mutex
	session *rosterclient.Session

	mu          sync.Mutex
	filter      string
	onlyPending bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}
	cfg := config.LoadViewer()
	loggers := logger.New("Viewer", cfg.LogLevel)

	api := rosterclient.NewAPIClient(cfg.APIURL, cfg.Token, nil)
	cache := rosterclient.NewCache(api.Fetch)
	v := &viewer{
		api:        api,
		cache:      cache,
		supervisor: rosterclient.NewSupervisor(rosterclient.WebSocketDialer{URL: cfg.HubURL, Origin: cfg.APIURL}, rosterclient.WithLogger(loggers.App.Sub("Push"))),
		reconciler: rosterclient.NewReconciler(cache, loggers.App.Sub("Reconcile")),
		coord:      rosterclient.NewCoordinator(cache, api, loggers.App.Sub("Mutations")),
		out:        os.Stdout,
	}
	v.reconciler.OnChange(func(int) { v.render() })
	v.reconciler.SkipEchoes(v.coord)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	communityID := cfg.CommunityID
	if communityID <= 0 {
		communities, err := api.ListCommunities(ctx)
		if err != nil {
			log.Fatalf("list communities: %v", err)
		}
		if len(communities) == 0 {
			log.Fatalf("no communities registered at %s", cfg.APIURL)
		}
		communityID = communities[0].ID
	}
	if err := v.open(ctx, communityID); err != nil {
		log.Fatalf("open community %d: %v", communityID, err)
	}
	defer v.supervisor.Disconnect()

	poller := &rosterclient.Poller{
		Interval: cfg.PollInterval,
		Scope:    v.reconciler.Scope,
		Handle:   v.reconciler.Handle,
		Ensure:   v.ensurePush,
	}
	go poller.Run(ctx)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	v.help()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := v.command(ctx, line); quit {
				return
			}
		}
	}
}

// open switches the viewer to communityID: push session, scope and first load.
func (v *viewer) open(ctx context.Context, communityID int) error {
	v.reconciler.SetScope(communityID)
	v.pushMu.Lock()
	v.attach(v.supervisor.Connect(communityID))
	v.pushMu.Unlock()

	for _, key := range []rosterclient.CacheKey{rosterclient.PeopleKey(communityID), rosterclient.SummaryKey(communityID)} {
		if _, err := v.cache.Load(ctx, key); err != nil {
			return err
		}
	}
	v.render()
	return nil
}

// ensurePush rebuilds the push session when the supervisor gave up on it.
func (v *viewer) ensurePush(communityID int) {
	v.pushMu.Lock()
	defer v.pushMu.Unlock()
	if sess := v.supervisor.EnsureConnected(communityID); sess != v.session {
		v.attach(sess)
	}
}

// attach expects pushMu held.
func (v *viewer) attach(sess *rosterclient.Session) {
	sess.OffAll()
	sess.On(v.reconciler.Handle)
	v.session = sess
}

func (v *viewer) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		v.render()
		return false
	}
	scope := v.reconciler.Scope()
	switch strings.ToLower(fields[0]) {
	case "q", "quit", "exit":
		return true
	case "in", "out":
		if len(fields) != 2 {
			fmt.Fprintln(v.out, "usage: in|out <personId>")
			return false
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(v.out, "person id must be a number")
			return false
		}
		mutate := v.coord.CheckIn
		if strings.EqualFold(fields[0], "out") {
			mutate = v.coord.CheckOut
		}
		if _, err := mutate(ctx, scope, id); err != nil {
			if errors.Is(err, rosterclient.ErrNotFound) {
				fmt.Fprintf(v.out, "person %d not found\n", id)
			} else {
				fmt.Fprintf(v.out, "could not update person %d: %v\n", id, err)
			}
		}
		v.render()
	case "badge":
		if len(fields) != 2 {
			fmt.Fprintln(v.out, "usage: badge <personId>")
			return false
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(v.out, "person id must be a number")
			return false
		}
		if err := terminal.WriteQR(v.out, attendance.BadgePayload(id)); err != nil {
			fmt.Fprintf(v.out, "badge: %v\n", err)
		}
	case "scan":
		// door scanners type the decoded badge text followed by enter
		id, err := attendance.ParseBadgePayload(strings.Join(fields[1:], ""))
		if err != nil {
			fmt.Fprintln(v.out, err)
			return false
		}
		if _, err := v.coord.CheckIn(ctx, scope, id); err != nil {
			fmt.Fprintf(v.out, "could not check in person %d: %v\n", id, err)
		}
		v.render()
	case "find", "search":
		v.mu.Lock()
		v.filter = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		v.mu.Unlock()
		v.render()
	case "pending":
		v.mu.Lock()
		v.onlyPending = !v.onlyPending
		v.mu.Unlock()
		v.render()
	case "community", "use":
		if len(fields) != 2 {
			v.listCommunities(ctx)
			return false
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(v.out, "community id must be a number")
			return false
		}
		if err := v.open(ctx, id); err != nil {
			fmt.Fprintf(v.out, "could not open community %d: %v\n", id, err)
			v.reconciler.SetScope(scope)
			v.supervisor.Connect(scope).On(v.reconciler.Handle)
		}
	case "refresh":
		v.reconciler.Handle(attendance.PollEvent(scope))
	case "status":
		if sess := v.supervisor.Session(); sess != nil {
			fmt.Fprintf(v.out, "push session: community %d %s\n", sess.CommunityID(), sess.State())
		} else {
			fmt.Fprintln(v.out, "push session: none")
		}
	default:
		v.help()
	}
	return false
}

func (v *viewer) listCommunities(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	communities, err := v.api.ListCommunities(ctx)
	if err != nil {
		fmt.Fprintf(v.out, "list communities: %v\n", err)
		return
	}
	for _, c := range communities {
		fmt.Fprintf(v.out, "  %d\t%s\n", c.ID, c.Name)
	}
}

func (v *viewer) render() {
	scope := v.reconciler.Scope()
	people, _ := v.cache.People(scope)
	summary, _ := v.cache.Summary(scope)

	v.mu.Lock()
	filter, onlyPending := v.filter, v.onlyPending
	v.mu.Unlock()

	w := tabwriter.NewWriter(v.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "\n== %s (community %d) ==\n", summary.CommunityName, scope)
	fmt.Fprintf(w, "total %d\tchecked in %d\tchecked out %d\tnot checked in %d\n",
		summary.TotalPeople, summary.CheckedInCount, summary.CheckedOutCount, summary.NotCheckedIn())
	if breakdown := attendance.CompanyBreakdown(people); len(breakdown) > 0 {
		fmt.Fprintln(w, "checked in by company:")
		for _, c := range breakdown {
			fmt.Fprintf(w, "  %s\t%d\n", c.Company, c.Count)
		}
	}
	fmt.Fprintln(w, "ID\tNAME\tCOMPANY\tTITLE\tCHECK-IN\tCHECK-OUT")
	for _, p := range attendance.FilterPeople(people, filter, onlyPending) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.FullName(), p.CompanyName, p.Title, formatStamp(p.CheckInDate), formatStamp(p.CheckOutDate))
	}
	_ = w.Flush()
}

func (v *viewer) help() {
	fmt.Fprintln(v.out, "commands: in <id> | out <id> | scan checkin:<id> | badge <id> | find <text> | pending | community [id] | refresh | status | quit")
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("01/02/2006 15:04:05")
}
