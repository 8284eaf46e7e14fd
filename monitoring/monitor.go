// Package monitoring serves the state of a running machine over HTTP.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/mmusim/draw"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/monitoring/web"
	"github.com/sarchlab/mmusim/stats"
)

// Monitor turns a simulation into a server so that the page tables, the TLB,
// the L1 cache, and the counters can be inspected while it runs. Every
// handler holds the lock of the monitor while it reads the machine.
type Monitor struct {
	machine    *machine.Machine
	collector  *stats.Collector
	lock       sync.Locker
	portNumber int

	server *http.Server
}

// NewMonitor creates a Monitor of m and collector. The lock must be the one
// that the code driving m holds.
func NewMonitor(
	m *machine.Machine,
	collector *stats.Collector,
	lock sync.Locker,
) *Monitor {
	return &Monitor{
		machine:   m,
		collector: collector,
		lock:      lock,
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// Router returns the handler of all the routes of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/stats/raw", m.serializeStats)
	r.HandleFunc("/api/tlb", m.listTLB)
	r.HandleFunc("/api/cache", m.listCache)
	r.HandleFunc("/api/pagemap", m.drawPageMap)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving in the background and returns the URL of the
// web page.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != http.ErrServerClosed {
			dieOnErr(err)
		}
	}()

	return url, nil
}

// Shutdown stops the server started by StartServer.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

type statsRsp struct {
	*stats.Collector

	TLBHitRate float64 `json:"tlb_hit_rate"`
	L1HitRate  float64 `json:"l1_hit_rate"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	c := *m.collector
	m.lock.Unlock()

	writeJSON(w, statsRsp{
		Collector:  &c,
		TLBHitRate: c.TLB.HitRate(),
		L1HitRate:  c.L1.HitRate(),
	})
}

func (m *Monitor) serializeStats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	c := *m.collector
	m.lock.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&c)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type tlbEntryRsp struct {
	Way    int    `json:"way"`
	VAddr  string `json:"vaddr"`
	PAddr  string `json:"paddr"`
	Access uint8  `json:"access"`
}

type tlbSetRsp struct {
	Set     int           `json:"set"`
	Entries []tlbEntryRsp `json:"entries"`
}

func (m *Monitor) listTLB(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	t := m.machine.TLB()

	if r.URL.Query().Get("format") == "text" {
		writeText(w, draw.TLB(t))
		return
	}

	rsp := []tlbSetRsp{}

	for setID, set := range t.Sets() {
		if set.NumValid() == 0 {
			continue
		}

		s := tlbSetRsp{Set: setID}
		for way, e := range set.Entries {
			if !e.Valid {
				continue
			}

			s.Entries = append(s.Entries, tlbEntryRsp{
				Way:    way,
				VAddr:  e.VAddr(setID).String(),
				PAddr:  e.PAddr.String(),
				Access: e.Access,
			})
		}

		rsp = append(rsp, s)
	}

	writeJSON(w, rsp)
}

type cacheBlockRsp struct {
	Way   int    `json:"way"`
	PAddr string `json:"paddr"`
}

type cacheSetRsp struct {
	Set    int             `json:"set"`
	Blocks []cacheBlockRsp `json:"blocks"`
}

func (m *Monitor) listCache(w http.ResponseWriter, r *http.Request) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c := m.machine.Cache()

	if r.URL.Query().Get("format") == "text" {
		writeText(w, draw.Cache(c))
		return
	}

	rsp := []cacheSetRsp{}

	for setID, set := range c.Sets() {
		if !set.HasEntry() {
			continue
		}

		s := cacheSetRsp{Set: setID}
		for way, b := range set.Blocks {
			if b.IsValid {
				s.Blocks = append(s.Blocks, cacheBlockRsp{
					Way:   way,
					PAddr: c.BlockPAddr(setID, b).String(),
				})
			}
		}

		rsp = append(rsp, s)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) drawPageMap(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	pageMap, err := draw.PageMap(m.machine)
	m.lock.Unlock()

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeText(w, pageMap)
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

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	time.Sleep(time.Second)

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

func writeText(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := io.WriteString(w, s)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
