package places

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubSearcher returns canned places or an error and records queries.
type stubSearcher struct {
	name    string
	places  []Place
	err     error
	queries []string
}

func (s *stubSearcher) Name() string { return s.name }
func (s *stubSearcher) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	s.queries = append(s.queries, query)
	return s.places, s.err
}

var _ Searcher = (*stubSearcher)(nil)

func TestLookup_FormatsNumberedList(t *testing.T) {
	s := NewService(Config{
		Searchers: []Searcher{&stubSearcher{name: "a", places: []Place{
			{Name: "Eiffel Tower", Descriptor: "Champ de Mars, Paris"},
			{Name: "Louvre"},
		}}},
		Logger: testLogger(),
	})

	got := s.Lookup(context.Background(), "Eiffel Tower")
	want := "1. Eiffel Tower - Champ de Mars, Paris\n2. Louvre"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLookup_CapsResults(t *testing.T) {
	many := make([]Place, 10)
	for i := range many {
		many[i] = Place{Name: "P"}
	}
	s := NewService(Config{Searchers: []Searcher{&stubSearcher{name: "a", places: many}}, MaxResults: 3, Logger: testLogger()})

	got := s.Lookup(context.Background(), "anything")
	if strings.Count(got, "\n") != 2 {
		t.Fatalf("expected 3 lines, got %q", got)
	}
}

func TestLookup_FallsBackInOrder(t *testing.T) {
	primary := &stubSearcher{name: "primary", err: errors.New("quota exceeded")}
	unconfigured := &stubSearcher{name: "unconfigured", err: ErrNotConfigured}
	empty := &stubSearcher{name: "empty"}
	fallback := &stubSearcher{name: "fallback", places: []Place{{Name: "Colosseum"}}}
	s := NewService(Config{Searchers: []Searcher{primary, unconfigured, empty, fallback}, Logger: testLogger()})

	got := s.Lookup(context.Background(), "Rome")
	if got != "1. Colosseum" {
		t.Fatalf("unexpected result %q", got)
	}
	for _, st := range []*stubSearcher{primary, unconfigured, empty, fallback} {
		if len(st.queries) != 1 {
			t.Errorf("%s: expected 1 query, got %d", st.name, len(st.queries))
		}
	}
}

func TestLookup_Sentinel(t *testing.T) {
	s := NewService(Config{Searchers: []Searcher{&stubSearcher{name: "a", err: errors.New("down")}}, Logger: testLogger()})
	if got := s.Lookup(context.Background(), "Nowhere"); got != "No places found for Nowhere." {
		t.Fatalf("unexpected result %q", got)
	}
	if got := NewService(Config{Logger: testLogger()}).Lookup(context.Background(), "Paris"); got != NotFound("Paris") {
		t.Fatalf("expected sentinel with no searchers, got %q", got)
	}
}

func TestByCategory_Templates(t *testing.T) {
	st := &stubSearcher{name: "a", places: []Place{{Name: "x"}}}
	s := NewService(Config{Searchers: []Searcher{st}, Logger: testLogger()})

	s.ByCategory(context.Background(), Attractions, "Paris")
	s.ByCategory(context.Background(), Restaurants, "Paris")
	s.ByCategory(context.Background(), Activities, "Paris")
	s.ByCategory(context.Background(), Transportation, "Paris")

	want := []string{
		"top attractions in Paris",
		"best restaurants in Paris",
		"things to do in Paris",
		"public transportation in Paris",
	}
	if strings.Join(st.queries, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected queries %v", st.queries)
	}
}

func TestByCategory_Sentinel(t *testing.T) {
	s := NewService(Config{Searchers: []Searcher{&stubSearcher{name: "a"}}, Logger: testLogger()})
	if got := s.ByCategory(context.Background(), Restaurants, "Atlantis"); got != "No places found for restaurants in Atlantis." {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestGooglePlaces_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/textsearch/json" || r.URL.Query().Get("key") != "gp-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("query") == "nothing" {
			w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
			return
		}
		w.Write([]byte(`{"status":"OK","results":[
			{"name":"Eiffel Tower","formatted_address":"Av. Gustave Eiffel, Paris","rating":4.7},
			{"name":"Trocadero","formatted_address":"Paris"},
			{"name":"Third","formatted_address":"Paris"}]}`))
	}))
	defer srv.Close()

	g := NewGooglePlaces(srv.URL, "gp-key", nil)
	got, err := g.Search(context.Background(), "Eiffel Tower", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 places, got %d", len(got))
	}
	if got[0].Descriptor != "Av. Gustave Eiffel, Paris (rating 4.7)" {
		t.Fatalf("unexpected descriptor %q", got[0].Descriptor)
	}

	none, err := g.Search(context.Background(), "nothing", 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty result, got %v %v", none, err)
	}
}

func TestGooglePlaces_Errors(t *testing.T) {
	if _, err := NewGooglePlaces("", "", nil).Search(context.Background(), "x", 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer srv.Close()
	if _, err := NewGooglePlaces(srv.URL, "k", nil).Search(context.Background(), "x", 5); err == nil {
		t.Fatal("expected error for REQUEST_DENIED")
	}
}

const ddgPage = `<html><body>
<div class="result results_links result--ad"><h2 class="result__title"><a class="result__a">Sponsored</a></h2></div>
<div class="result results_links"><h2 class="result__title"><a class="result__a">Louvre   Museum</a></h2>
<a class="result__snippet">The world's most-visited
 museum.</a></div>
<div class="result results_links"><h2 class="result__title"><a class="result__a">Musée d'Orsay</a></h2></div>
<div class="result results_links"><h2 class="result__title"><a class="result__a">Centre Pompidou</a></h2></div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/" || r.URL.Query().Get("q") != "museums in Paris" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(ddgPage))
	}))
	defer srv.Close()

	got, err := NewDuckDuckGo(srv.URL, nil).Search(context.Background(), "museums in Paris", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 places, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Louvre Museum" || got[0].Descriptor != "The world's most-visited museum." {
		t.Fatalf("unexpected first place %+v", got[0])
	}
	if got[1].Name != "Musée d'Orsay" || got[1].Descriptor != "" {
		t.Fatalf("unexpected second place %+v", got[1])
	}
}

func TestDuckDuckGo_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewDuckDuckGo(srv.URL, nil).Search(context.Background(), "x", 3); err == nil {
		t.Fatal("expected error for 503")
	}
}
