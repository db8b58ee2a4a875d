// Package monitoring serves the state of running pacing loops over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	// Enable profiling
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/pulse/idgen"
	"github.com/sarchlab/pulse/monitoring/web"
	"github.com/sarchlab/pulse/pacing"
	"github.com/sarchlab/pulse/timing"
)

// A MonitoredLoop is a loop whose state can be observed and restarted while
// it runs.
type MonitoredLoop interface {
	Name() string
	PollInterval() time.Duration
	MaxTicks() uint64
	Snapshot() timing.Snapshot
	Stats() pacing.Stats
	RequestRestart()
}

// Monitor turns a set of running loops into a web server that allows
// external monitoring and restarting of the loops.
type Monitor struct {
	portNumber  int
	openBrowser bool
	idGen       idgen.Generator

	loopsLock sync.Mutex
	loops     []MonitoredLoop

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		idGen: idgen.NewSequential(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithOpenBrowser makes the monitor open the dashboard in the default
// browser once the server is started.
func (m *Monitor) WithOpenBrowser(open bool) *Monitor {
	m.openBrowser = open
	return m
}

// RegisterLoop registers a loop to be monitored.
func (m *Monitor) RegisterLoop(l MonitoredLoop) {
	m.loopsLock.Lock()
	defer m.loopsLock.Unlock()

	m.loops = append(m.loops, l)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGen.Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	fServer := http.FileServer(web.GetAssets())

	r.HandleFunc("/api/loops", m.listLoops).Methods(http.MethodGet)
	r.HandleFunc("/api/loop/{name}", m.loopDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/loop/{name}/snapshot", m.loopSnapshot).
		Methods(http.MethodGet)
	r.HandleFunc("/api/loop/{name}/restart", m.restartLoop).
		Methods(http.MethodPost)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	r.PathPrefix("/").Handler(fServer)

	return r
}

// StartServer starts the monitor as a web server with a custom port if
// wanted.
func (m *Monitor) StartServer() {
	listener, err := net.Listen("tcp", m.listenAddr())
	dieOnErr(err)

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	url := "http://" + m.Addr()
	fmt.Fprintf(os.Stderr, "Monitoring loops with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			log.Panic(err)
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("failed to open browser: %v", err)
		}
	}
}

func (m *Monitor) listenAddr() string {
	if m.portNumber >= 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

// Addr returns the address that the server listens on. It returns an empty
// string if the server has not been started.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return ""
	}

	port := m.listener.Addr().(*net.TCPAddr).Port

	return "localhost:" + strconv.Itoa(port)
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	return m.server.Shutdown(ctx)
}

func (m *Monitor) listLoops(w http.ResponseWriter, _ *http.Request) {
	m.loopsLock.Lock()
	names := make([]string, 0, len(m.loops))
	for _, l := range m.loops {
		names = append(names, l.Name())
	}
	m.loopsLock.Unlock()

	sort.Strings(names)

	writeJSON(w, names)
}

func (m *Monitor) loopDetails(w http.ResponseWriter, r *http.Request) {
	loop := m.findLoopOr404(w, mux.Vars(r)["name"])
	if loop == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newLoopView(loop))
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

// loopView holds copies of the observable state of a loop, taken through its
// goroutine-safe accessors.
type loopView struct {
	Name         string
	PollInterval time.Duration
	MaxTicks     uint64
	Snapshot     timing.Snapshot
	Stats        pacing.Stats
}

func newLoopView(l MonitoredLoop) *loopView {
	return &loopView{
		Name:         l.Name(),
		PollInterval: l.PollInterval(),
		MaxTicks:     l.MaxTicks(),
		Snapshot:     l.Snapshot(),
		Stats:        l.Stats(),
	}
}

type snapshotRsp struct {
	Name     string          `json:"name"`
	Snapshot timing.Snapshot `json:"snapshot"`
	Stats    pacing.Stats    `json:"stats"`
}

func (m *Monitor) loopSnapshot(w http.ResponseWriter, r *http.Request) {
	loop := m.findLoopOr404(w, mux.Vars(r)["name"])
	if loop == nil {
		return
	}

	writeJSON(w, snapshotRsp{
		Name:     loop.Name(),
		Snapshot: loop.Snapshot(),
		Stats:    loop.Stats(),
	})
}

func (m *Monitor) restartLoop(w http.ResponseWriter, r *http.Request) {
	loop := m.findLoopOr404(w, mux.Vars(r)["name"])
	if loop == nil {
		return
	}

	loop.RequestRestart()
	w.WriteHeader(http.StatusAccepted)
}

type fieldReq struct {
	LoopName  string `json:"loop_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loop := m.findLoopOr404(w, req.LoopName)
	if loop == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(newLoopView(loop))
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

func (m *Monitor) findLoopOr404(
	w http.ResponseWriter,
	name string,
) MonitoredLoop {
	m.loopsLock.Lock()
	defer m.loopsLock.Unlock()

	for _, l := range m.loops {
		if l.Name() == name {
			return l
		}
	}

	http.Error(w, "Loop not found", http.StatusNotFound)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second
	if s := r.URL.Query().Get("seconds"); s != "" {
		d, err := time.ParseDuration(s + "s")
		if err != nil || d <= 0 {
			http.Error(w, "invalid seconds", http.StatusBadRequest)
			return
		}

		duration = d
	}

	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(duration)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
