package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	. "gridworld/grid_world"
	"gridworld/policy"
	"gridworld/reinforcement"
	"gridworld/server/cell_views"
	"gridworld/server/fastview"
	"gridworld/server/plots"
	"gridworld/server/root_view"

	"github.com/gorilla/mux"
)

// shutdownGracePeriod bounds how long Serve waits for open requests on cancellation.
const shutdownGracePeriod = 5 * time.Second

// Server serves a single page of grid views, plus a small json api over the grid,
// the policy, and the dynamics. The page's live updates go to a single client over a
// single websocket: the ele-update channel can be listened to by only one client at
// a time, so opening a second page starves the first.
type Server struct {
	addr     string
	grid     *Grid
	pol      *policy.Policy
	batch    *reinforcement.BatchResult
	initial  cell_views.Board
	rootView *root_view.RootView
	router   *mux.Router
}

// NewServer initializes all of the views and returns a server. The websocket replays
// the batch's episodes, or freshly sampled ones if batch is nil.
func NewServer(
	ctx context.Context,
	addr string,
	grid *Grid,
	pol *policy.Policy,
	batch *reinforcement.BatchResult,
) (*Server, error) {
	if err := pol.Fits(grid); err != nil {
		return nil, err
	}

	snapshots := replay(ctx.Done(), grid, pol, batch, replayPeriod)
	rootView, err := root_view.NewRootView(ctx, grid, pol, snapshots)
	if err != nil {
		return nil, err
	}

	server := &Server{
		addr:     addr,
		grid:     grid,
		pol:      pol,
		batch:    batch,
		initial:  cell_views.Initial(grid, pol),
		rootView: rootView,
	}
	server.router = server.routes()
	return server, nil
}

func (server *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", server.serveIndex).Methods(http.MethodGet)
	router.HandleFunc("/ws", server.serveWebsocket)
	router.HandleFunc("/returns", server.serveReturns).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/grid", server.serveGrid).Methods(http.MethodGet)
	api.HandleFunc("/policy", server.servePolicy).Methods(http.MethodGet)
	api.HandleFunc("/step/{state:[0-9]+}/{action}", server.serveStep).Methods(http.MethodGet)
	api.HandleFunc("/sample/{state:[0-9]+}/{action}", server.serveSample).Methods(http.MethodGet)
	return router
}

// Handler returns the server's routes, e.g. for use with httptest.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Serve listens on the server's address until ctx is cancelled.
func (server *Server) Serve(ctx context.Context) (err error) {
	httpServer := &http.Server{
		Addr:    server.addr,
		Handler: server.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	log.Println("serving on", server.addr)
	if err = httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// serveWebsocket publishes view updates to the client via websocket.
func (server *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	cli, err := fastview.NewClient(server.rootView.Updates(), w, r)
	if err != nil {
		log.Println("upgrade:", err)
		return
	}

	if err := cli.Sync(); err != nil {
		log.Println("sync:", err)
	}
}

// Serve the index.html main page.
func (server *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := renderTemplate(w, server.rootView, server.initial); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func renderTemplate(
	w io.Writer,
	vc fastview.ViewComponent,
	data interface{},
) (err error) {
	t := template.New("index.html")
	var tname string
	if tname, err = vc.Parse(t); err != nil {
		return
	}
	if _, err = t.Parse(`{{ template "` + tname + `" . }}`); err != nil {
		return
	}

	err = t.Execute(w, data)
	return
}

func (server *Server) serveReturns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	err := plots.RenderReturns(w, "episode returns", server.batch)
	if errors.Is(err, plots.ErrNoEpisodes) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type cellJSON struct {
	State  State   `json:"state"`
	Row    int     `json:"row"`
	Col    int     `json:"col"`
	Kind   string  `json:"kind"`
	Reward float64 `json:"reward"`
}

type gridJSON struct {
	Rows            int        `json:"rows"`
	Cols            int        `json:"cols"`
	GoalReward      float64    `json:"goalReward"`
	ForbiddenReward float64    `json:"forbiddenReward"`
	Cells           []cellJSON `json:"cells"`
}

type policyJSON struct {
	Actions       []string    `json:"actions"`
	Probabilities [][]float64 `json:"probabilities"`
	Best          []string    `json:"best"`
}

type transitionJSON struct {
	State      State   `json:"state"`
	Action     string  `json:"action"`
	Reward     float64 `json:"reward"`
	NextState  State   `json:"nextState"`
	NextAction string  `json:"nextAction,omitempty"`
}

func toTransitionJSON(tr Transition) transitionJSON {
	return transitionJSON{
		State:      tr.State,
		Action:     tr.Action.String(),
		Reward:     tr.Reward,
		NextState:  tr.NextState,
		NextAction: tr.NextAction.String(),
	}
}

func (server *Server) serveGrid(w http.ResponseWriter, r *http.Request) {
	view := gridJSON{
		Rows:            server.grid.Rows(),
		Cols:            server.grid.Cols(),
		GoalReward:      server.grid.GoalReward(),
		ForbiddenReward: server.grid.ForbiddenReward(),
	}
	server.grid.Visit(func(s State, row, col int) {
		view.Cells = append(view.Cells, cellJSON{
			State:  s,
			Row:    row,
			Col:    col,
			Kind:   server.grid.Kind(s).String(),
			Reward: server.grid.Reward(s),
		})
	})
	writeJSON(w, view)
}

func (server *Server) servePolicy(w http.ResponseWriter, r *http.Request) {
	view := policyJSON{}
	for _, a := range Actions {
		view.Actions = append(view.Actions, a.String())
	}
	for s := 0; s < server.pol.NumStates(); s++ {
		view.Probabilities = append(view.Probabilities, server.pol.Row(State(s)))
	}
	for _, a := range server.pol.BestActions() {
		view.Best = append(view.Best, a.String())
	}
	writeJSON(w, view)
}

// serveStep applies one transition of the dynamics.
func (server *Server) serveStep(w http.ResponseWriter, r *http.Request) {
	state, action, err := parseStart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reward, next, err := server.grid.Step(state, action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, transitionJSON{
		State:     state,
		Action:    action.String(),
		Reward:    reward,
		NextState: next,
	})
}

// serveSample samples a trajectory of the server's policy. The query parameters
// steps (default 10, at most StopAtGoalBound), seed (default 1), and stopAtGoal are optional.
func (server *Server) serveSample(w http.ResponseWriter, r *http.Request) {
	state, action, err := parseStart(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	steps, err := queryInt(query.Get("steps"), 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if steps > reinforcement.StopAtGoalBound {
		http.Error(w, fmt.Sprintf("steps: at most %d", reinforcement.StopAtGoalBound), http.StatusBadRequest)
		return
	}
	seed, err := queryInt(query.Get("seed"), 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stopAtGoal := query.Get("stopAtGoal") == "true"

	smp := reinforcement.NewSeededSampler(server.grid, uint64(seed))
	trajectory, err := smp.Sample(state, action, server.pol, steps, stopAtGoal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	view := make([]transitionJSON, 0, len(trajectory))
	for _, tr := range trajectory {
		view = append(view, toTransitionJSON(tr))
	}
	writeJSON(w, view)
}

// parseStart reads the state and action route variables.
func parseStart(r *http.Request) (State, Action, error) {
	vars := mux.Vars(r)
	state, err := strconv.Atoi(vars["state"])
	if err != nil {
		return 0, 0, fmt.Errorf("state: %w", err)
	}
	action, err := ParseAction(vars["action"])
	if err != nil {
		return 0, 0, err
	}
	return State(state), action, nil
}

func queryInt(val string, defaultVal int) (int, error) {
	if val == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(val)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("encode:", err)
	}
}
