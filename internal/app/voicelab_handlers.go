package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/MrWong99/newscast/internal/observe"
	"github.com/MrWong99/newscast/internal/voicelab"
)

func (a *App) labStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.lab.Status())
}

func (a *App) startRecording(w http.ResponseWriter, r *http.Request) {
	if err := a.lab.StartRecording(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.lab.Status())
}

// recordChunk appends raw 16-bit PCM from the browser microphone. Only
// microphones fed over the network accept chunks.
func (a *App) recordChunk(w http.ResponseWriter, r *http.Request) {
	sink, ok := a.mic.(io.Writer)
	if !ok {
		writeError(w, r, fmt.Errorf("%w: microphone does not accept uploaded audio", voicelab.ErrPermission))
		return
	}
	if a.lab.State() != voicelab.Recording {
		writeError(w, r, voicelab.ErrNotRecording)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	n, err := io.Copy(sink, r.Body)
	if err != nil {
		if errors.Is(err, voicelab.ErrNotRecording) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, badRequest(err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Bytes int64 `json:"bytes"`
		voicelab.Status
	}{n, a.lab.Status()})
}

func (a *App) stopRecording(w http.ResponseWriter, r *http.Request) {
	done, err := a.lab.StopRecording()
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.awaitClone(r.Context(), done)
	writeJSON(w, http.StatusAccepted, a.lab.Status())
}

func (a *App) uploadSample(w http.ResponseWriter, r *http.Request) {
	name, data, err := readAudio(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	done, err := a.lab.Upload(r.Context(), name, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.awaitClone(r.Context(), done)
	writeJSON(w, http.StatusAccepted, a.lab.Status())
}

func (a *App) resetLab(w http.ResponseWriter, r *http.Request) {
	if err := a.lab.Reset(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.lab.Status())
}

// awaitClone logs the outcome of a background clone; the lab status already
// carries the user-facing result.
func (a *App) awaitClone(ctx context.Context, done <-chan error) {
	log := observe.Logger(ctx)
	go func() {
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("voice clone failed", "err", err)
		}
	}()
}
