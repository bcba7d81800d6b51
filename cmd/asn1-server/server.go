package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/davidjspooner/asn1rt/internal/config"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1codec"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1core"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1schema"
	"github.com/davidjspooner/asn1rt/pkg/asn1/asn1value"
	"github.com/davidjspooner/asn1rt/pkg/logevent"
	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var codecHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "asn1rt_codec_duration_seconds",
	Help: "Duration of the codec request",
}, []string{"rule", "op", "code"})

var codecCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asn1rt_codec_total",
	Help: "Total number of codec requests",
}, []string{"rule", "op", "code"})

var codecRequestBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asn1rt_codec_request_bytes",
	Help: "Total number of bytes received in codec requests",
}, []string{"rule", "op"})

var codecResponseBytes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asn1rt_codec_response_bytes",
	Help: "Total number of bytes sent in response to codec requests",
}, []string{"rule", "op", "code"})

const defaultBodyLimit = 1 << 20

type Server struct {
	resolver asn1schema.Resolvers
	codecs   map[asn1core.Rule]*asn1codec.Codec
	limit    int64
	log      *slog.Logger
}

func NewServer(cfg *config.Config, log *slog.Logger) (*Server, error) {
	resolver, err := cfg.Resolver()
	if err != nil {
		return nil, err
	}
	s := &Server{
		resolver: resolver,
		codecs:   make(map[asn1core.Rule]*asn1codec.Codec),
		limit:    defaultBodyLimit,
		log:      log,
	}
	if cfg.MaxLength > 0 {
		s.limit = int64(cfg.MaxLength)
	}
	for _, rule := range asn1core.Rules() {
		s.codecs[rule] = cfg.Codec(rule, resolver, log)
	}
	return s, nil
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.log.With("method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(logevent.WithLogger(r.Context(), log)))
	})
}

type typeList struct {
	Module string   `json:"module"`
	Types  []string `json:"types"`
}

func (s *Server) Types(w http.ResponseWriter, r *http.Request) {
	var modules []typeList
	for _, resolver := range s.resolver {
		if m, ok := resolver.(*asn1schema.Module); ok {
			modules = append(modules, typeList{Module: m.Name, Types: m.Names()})
		}
	}
	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(modules)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// codecRequest is the parsed path and body shared by the codec endpoints.
type codecRequest struct {
	rule  asn1core.Rule
	typ   asn1schema.Type
	codec *asn1codec.Codec
	body  []byte
}

type statusError struct {
	code int
	err  error
}

func (e *statusError) Error() string { return e.err.Error() }

func (e *statusError) Unwrap() error { return e.err }

func (s *Server) parseRequest(r *http.Request) (*codecRequest, error) {
	rule, err := asn1core.ParseRule(chi.URLParam(r, "rule"))
	if err != nil {
		return nil, &statusError{http.StatusNotFound, err}
	}
	name := chi.URLParam(r, "type")
	t, ok := s.resolver.Lookup(name)
	if !ok {
		return nil, &statusError{http.StatusNotFound, errors.New("unknown type " + strconv.Quote(name))}
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, s.limit))
	if err != nil {
		return nil, &statusError{http.StatusRequestEntityTooLarge, err}
	}
	return &codecRequest{rule: rule, typ: t, codec: s.codecs[rule], body: body}, nil
}

func contentType(rule asn1core.Rule) string {
	if rule == asn1core.JER {
		return "application/json"
	}
	return "application/octet-stream"
}

// handle runs op and records the request in the codec metrics.
func (s *Server) handle(w http.ResponseWriter, r *http.Request, op string, fn func(req *codecRequest) ([]byte, string, error)) {
	stats := NewRequestStats(w)
	ruleLabel := chi.URLParam(r, "rule")
	defer func() {
		elapsed := time.Since(stats.started)
		code := strconv.Itoa(stats.statusCode)
		codecHistogram.WithLabelValues(ruleLabel, op, code).Observe(elapsed.Seconds())
		codecCounter.WithLabelValues(ruleLabel, op, code).Inc()
		codecResponseBytes.WithLabelValues(ruleLabel, op, code).Add(float64(stats.bytesWritten))
	}()

	req, err := s.parseRequest(r)
	if err == nil {
		ruleLabel = req.rule.String()
		codecRequestBytes.WithLabelValues(ruleLabel, op).Add(float64(len(req.body)))
		var out []byte
		var ctype string
		if out, ctype, err = fn(req); err == nil {
			stats.Header().Set("Content-Type", ctype)
			stats.Write(out)
			return
		}
	}

	code := http.StatusBadRequest
	var se *statusError
	if errors.As(err, &se) {
		code = se.code
	}
	logevent.LoggerFromContext(r.Context()).Debug("codec request failed", "op", op, "rule", ruleLabel, "error", err)
	stats.Header().Set("Content-Type", "text/plain; charset=utf-8")
	stats.WriteHeader(code)
	io.WriteString(stats, err.Error()+"\n")
}

// Encode reads a JER value and answers with its encoding under the rule in the path.
func (s *Server) Encode(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "encode", func(req *codecRequest) ([]byte, string, error) {
		v, err := s.codecs[asn1core.JER].Decode(req.typ, bytes.TrimSpace(req.body))
		if err != nil {
			return nil, "", err
		}
		b, err := req.codec.Encode(req.typ, v)
		return b, contentType(req.rule), err
	})
}

// Decode reads an encoding under the rule in the path and answers with its JER value.
func (s *Server) Decode(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "decode", func(req *codecRequest) ([]byte, string, error) {
		v, err := req.codec.Decode(req.typ, req.body)
		if err != nil {
			return nil, "", err
		}
		b, err := s.jer(req.typ, v)
		return b, "application/json", err
	})
}

func (s *Server) jer(t asn1schema.Type, v asn1value.Value) ([]byte, error) {
	return s.codecs[asn1core.JER].Encode(t, v)
}

// Trace answers with the field layout of a decode. A failed decode still returns what was
// traced up to the failure, with the error on the last line.
func (s *Server) Trace(w http.ResponseWriter, r *http.Request) {
	s.handle(w, r, "trace", func(req *codecRequest) ([]byte, string, error) {
		_, trace, err := req.codec.DecodeTrace(req.typ, req.body)
		var buf bytes.Buffer
		if trace != nil {
			if dumpErr := trace.Dump(&buf); dumpErr != nil {
				return nil, "", dumpErr
			}
		} else if err != nil {
			return nil, "", err
		}
		if err != nil {
			buf.WriteString("error: " + err.Error() + "\n")
		}
		return buf.Bytes(), "text/plain; charset=utf-8", nil
	})
}
