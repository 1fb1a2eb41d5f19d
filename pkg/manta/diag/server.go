// Package diag exposes a small HTTP surface for inspecting a running
// receiver: active VFOs, their latest batch metrics, and device state.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	"github.com/manta-sdr/manta/pkg/manta/device"
	"github.com/manta-sdr/manta/pkg/types"
)

// DeviceInfo is the device snapshot served at /device.
type DeviceInfo struct {
	Capabilities device.Capabilities `json:"capabilities"`
	BufferStats  device.PoolStats    `json:"buffer_stats"`
	CenterFreq   int                 `json:"center_freq"`
	SampleRate   int                 `json:"sample_rate"`
}

// Source is whatever the server inspects, normally the receiver.
type Source interface {
	ActiveVFOs() []types.VFO
	LastMetrics() []types.VfoMetrics
	DeviceInfo() DeviceInfo
}

type Server struct {
	mu   sync.RWMutex
	src  Source
	port int
	srv  *http.Server
}

func NewServer(port int) *Server {
	return &Server{
		port: port,
		srv:  &http.Server{Addr: fmt.Sprintf(":%d", port)},
	}
}

// SetSource wires the inspected receiver. Requests before this is called
// get 503.
func (s *Server) SetSource(src Source) {
	s.mu.Lock()
	s.src = src
	s.mu.Unlock()
}

func (s *Server) source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.src
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

func (s *Server) Run(ctx context.Context) error {
	router := httprouter.New()
	router.GET("/vfos", s.handleVFOs)
	router.GET("/metrics", s.handleMetrics)
	router.GET("/buffers", s.handleBuffers)
	router.GET("/device", s.handleDevice)
	s.srv.Handler = router

	go func() {
		<-ctx.Done()
		s.srv.Shutdown(context.Background())
	}()

	log.Info().Int("port", s.port).Msg("diag server starting")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleVFOs(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	src := s.source()
	if src == nil {
		http.Error(w, "no source attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, src.ActiveVFOs())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	src := s.source()
	if src == nil {
		http.Error(w, "no source attached", http.StatusServiceUnavailable)
		return
	}
	metrics := src.LastMetrics()
	sort.Slice(metrics, func(i, j int) bool { return metrics[i].VFOID < metrics[j].VFOID })
	writeJSON(w, metrics)
}

func (s *Server) handleBuffers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	src := s.source()
	if src == nil {
		http.Error(w, "no source attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, src.DeviceInfo().BufferStats)
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	src := s.source()
	if src == nil {
		http.Error(w, "no source attached", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, src.DeviceInfo())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("error encoding diag response")
	}
}
