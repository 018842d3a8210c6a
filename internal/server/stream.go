package server

import (
	"encoding/json"
	"net/http"

	"github.com/five82/vmlog/internal/api"
	"github.com/five82/vmlog/internal/logevent"
	"github.com/five82/vmlog/internal/ringbuf"
	"github.com/five82/vmlog/internal/tail"
)

var _ tail.Source = streamSource{}

// streamSource attaches after a sequence cursor, or live-only without one.
type streamSource struct {
	buf      *ringbuf.Buffer
	since    uint64
	hasSince bool
}

func (s streamSource) Attach(int) ([]logevent.LogEvent, *ringbuf.Subscriber, error) {
	if !s.hasSince {
		backlog, sub := s.buf.Attach(0)
		return backlog, sub, nil
	}
	backlog, sub := s.buf.AttachSince(s.since)
	return backlog, sub, nil
}

func (s streamSource) Detach(sub *ringbuf.Subscriber) {
	s.buf.Unsubscribe(sub)
}

// ndjsonEmitter writes one JSON event per line and flushes after each.
type ndjsonEmitter struct {
	enc     *json.Encoder
	flusher http.Flusher
}

func (e ndjsonEmitter) Emit(evt logevent.LogEvent) error {
	if err := e.enc.Encode(evt); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	since, hasSince, err := uintParam(query.Get("since"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	keep, err := levelFilter(query.Get("level"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", api.ContentTypeNDJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	session := tail.NewSession(
		streamSource{buf: s.buf, since: since, hasSince: hasSince},
		ndjsonEmitter{enc: json.NewEncoder(w), flusher: flusher},
		tail.WithFilter(keep),
		tail.WithLogger(s.log),
	)
	if err := session.Run(r.Context()); err != nil {
		s.log.WithError(err).Debug("log stream ended")
	}
}
