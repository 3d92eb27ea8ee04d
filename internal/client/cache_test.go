package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erazemk/evidenca/internal/mock"
	"github.com/erazemk/evidenca/internal/model"
)

func TestCacheDeduplicatesInFlight(t *testing.T) {
	c := NewCache()
	key := Key{Entity: "users", Op: "list"}
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Fetch(context.Background(), key, func(context.Context) (any, error) {
				calls.Add(1)
				<-release
				return 1, nil
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}

	// Served from the cache now.
	v, _ := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		t.Fatal("unexpected fetch")
		return nil, nil
	})
	if v != 1 {
		t.Fatalf("expected cached 1, got %v", v)
	}
}

func TestCacheInvalidateByTag(t *testing.T) {
	c := NewCache()
	ctx := context.Background()
	one := func(context.Context) (any, error) { return 1, nil }
	c.Fetch(ctx, Key{Entity: "users", Op: "list"}, one)
	c.Fetch(ctx, Key{Entity: "users", Op: "get", Params: "a"}, one)
	c.Fetch(ctx, Key{Entity: "lots", Op: "list"}, one)

	var notified atomic.Int32
	unsub := c.Subscribe("users", func() { notified.Add(1) })
	c.Invalidate("users")
	if c.Len() != 1 {
		t.Fatalf("expected only lots to remain, got %d entries", c.Len())
	}
	if notified.Load() != 1 {
		t.Fatalf("expected 1 notification, got %d", notified.Load())
	}

	unsub()
	c.Invalidate("users")
	if notified.Load() != 1 {
		t.Fatal("expected no notification after unsubscribe")
	}
}

func TestCacheDropsStaleResponse(t *testing.T) {
	c := NewCache()
	key := Key{Entity: "users", Op: "list"}
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan any)
	go func() {
		v, _ := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- v
	}()
	<-started
	c.Invalidate("users")

	// A fetch after the invalidation does not join the stale one.
	v, _ := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return "new", nil })
	if v != "new" {
		t.Fatalf("expected new value, got %v", v)
	}
	close(release)
	<-done

	v, _ = c.Fetch(context.Background(), key, func(context.Context) (any, error) { return "refetched", nil })
	if v != "new" {
		t.Fatalf("stale response overwrote the cache: %v", v)
	}
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	c := NewCache()
	key := Key{Entity: "users", Op: "get", Params: "x"}
	boom := errors.New("boom")
	if _, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("expected no cached entry")
	}
}

func TestQueryLifecycle(t *testing.T) {
	c := NewCache()
	release := make(chan struct{})
	q := NewQuery(c, Key{Entity: "users", Op: "get", Params: "1"}, func(context.Context) (string, error) {
		<-release
		return "ana", nil
	})
	if q.State().Status != StatusIdle {
		t.Fatalf("expected idle, got %v", q.State().Status)
	}

	done := make(chan QueryState[string])
	go func() { done <- q.Fetch(context.Background()) }()
	for q.State().Status != StatusLoading {
		time.Sleep(time.Millisecond)
	}
	close(release)
	st := <-done
	if st.Status != StatusSuccess || st.Data != "ana" {
		t.Fatalf("unexpected state %+v", st)
	}

	failing := NewQuery(c, Key{Entity: "users", Op: "get", Params: "2"}, func(context.Context) (string, error) {
		return "", &Error{Status: 404, Message: "user not found"}
	})
	st = failing.Fetch(context.Background())
	if st.Status != StatusError || KindOf(st.Err) != KindNotFound {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestUnmountDiscardsResponse(t *testing.T) {
	c := NewCache()
	started := make(chan struct{})
	release := make(chan struct{})
	q := NewQuery(c, Key{Entity: "users", Op: "list"}, func(context.Context) (int, error) {
		close(started)
		<-release
		return 7, nil
	})

	done := make(chan struct{})
	go func() {
		q.Mount(context.Background())
		close(done)
	}()
	<-started
	q.Unmount()
	close(release)
	<-done

	if st := q.State(); st.Status == StatusSuccess {
		t.Fatalf("expected response to be discarded, got %+v", st)
	}
}

func TestMountedQueryRefetchesAfterMutation(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4, Organizations: 2})
	ctx := context.Background()

	q := env.entities.Organizations.ListQuery(model.ListParams{})
	st := q.Mount(ctx)
	if st.Status != StatusSuccess || st.Data.TotalCount != 2 {
		t.Fatalf("unexpected state %+v", st)
	}

	if _, err := env.entities.Organizations.Create(ctx, map[string]any{"name": "New", "plan": model.PlanTeam, "isActive": true}); err != nil {
		t.Fatal(err)
	}
	if st := q.State(); st.Status != StatusSuccess || st.Data.TotalCount != 3 {
		t.Fatalf("expected refetched list with 3 rows, got %+v", st)
	}

	q.Unmount()
	if _, err := env.entities.Organizations.Create(ctx, map[string]any{"name": "Later", "plan": model.PlanTeam}); err != nil {
		t.Fatal(err)
	}
	if st := q.State(); st.Data.TotalCount != 3 {
		t.Fatalf("unmounted query refetched: %+v", st)
	}
}

// clock is a settable time source for cache expiry.
type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheExpiresEntries(t *testing.T) {
	c := NewCache()
	c.MaxAge = time.Minute
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now

	key := Key{Entity: "users", Op: "list"}
	calls := 0
	load := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	c.Fetch(context.Background(), key, load)
	clk.advance(30 * time.Second)
	if v, _ := c.Fetch(context.Background(), key, load); v != 1 {
		t.Fatalf("expected cached 1 before max age, got %v", v)
	}
	clk.advance(31 * time.Second)
	if v, _ := c.Fetch(context.Background(), key, load); v != 2 {
		t.Fatalf("expected reload after max age, got %v", v)
	}
}

func TestCachePrunesExpiredKeys(t *testing.T) {
	c := NewCache()
	c.MaxAge = time.Minute
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.now = clk.now
	one := func(context.Context) (any, error) { return 1, nil }

	for i := range 500 {
		c.Fetch(context.Background(), Key{Entity: "companies", Op: "list", Params: fmt.Sprintf("search=%d", i)}, one)
	}
	if c.Len() != 500 {
		t.Fatalf("expected 500 entries, got %d", c.Len())
	}

	clk.advance(2 * time.Minute)
	c.Fetch(context.Background(), Key{Entity: "companies", Op: "list"}, one)
	if c.Len() != 1 {
		t.Fatalf("expected expired searches to be pruned, got %d entries", c.Len())
	}
}

func TestCacheSeesOtherClientsChanges(t *testing.T) {
	env := setup(t, mock.Seed{Users: 4, Organizations: 1, Companies: 3})
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	env.cache.now = clk.now

	// A second signed-in user with a cache of its own.
	other := New(env.server.URL, nil, nil)
	admin, _ := env.store.FirstUser(model.RoleAdmin)
	if _, err := other.Login(ctx, admin.Email, testPassword); err != nil {
		t.Fatal(err)
	}
	otherEntities := NewEntities(other, NewCache())

	page, err := env.entities.Companies.List(ctx, model.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 3 {
		t.Fatalf("expected 3 companies, got %d", page.TotalCount)
	}

	in := model.Company{LegalName: "Other", BrandName: "O", RegistrationNumber: "R9", TaxID: "T9", VATNumber: "V9", Currency: "EUR", Timezone: "UTC"}
	if _, err := otherEntities.Companies.Create(ctx, in); err != nil {
		t.Fatal(err)
	}

	clk.advance(DefaultMaxAge)
	page, err = env.entities.Companies.List(ctx, model.ListParams{})
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 4 {
		t.Fatalf("expected the other client's company after max age, got %d", page.TotalCount)
	}
}
