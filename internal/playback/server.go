package playback

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
)

// File describes a stored media file to stream.
type File struct {
	Path string
	// ContentType overrides the type guessed from the extension.
	ContentType string
	// Name, when set, is sent as an inline Content-Disposition filename.
	Name string
}

// Server streams stored images and videos with byte-range and ETag support.
type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger.With("component", "playback")}
}

// Serve writes f to w. Missing files return a not-found error and nothing is written.
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, f File) error {
	file, err := os.Open(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return visionerr.NotFound("file", filepath.Base(f.Path))
		}
		return visionerr.Wrap(err, visionerr.CodeServerInternal, "failed to open file")
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return visionerr.Wrap(err, visionerr.CodeServerInternal, "failed to stat file")
	}
	size := stat.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(f))
	h.Set("Last-Modified", stat.ModTime().UTC().Format(http.TimeFormat))
	tag := etag(f.Path, size, stat.ModTime())
	h.Set("ETag", tag)
	if f.Name != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": f.Name}))
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == tag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	span, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		s.logger.Debug("ignoring malformed range", "range", r.Header.Get("Range"))
		span = nil
	}

	if span == nil {
		h.Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		_, err = io.Copy(w, file)
		return s.copyErr(err)
	}

	h.Set("Content-Length", strconv.FormatInt(span.Length(), 10))
	h.Set("Content-Range", span.ContentRange(size))
	if _, err := file.Seek(span.Start, io.SeekStart); err != nil {
		return visionerr.Wrap(err, visionerr.CodeServerInternal, "failed to seek")
	}
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	_, err = io.CopyN(w, file, span.Length())
	return s.copyErr(err)
}

// copyErr logs write failures. Nothing useful can be sent once the body has started.
func (s *Server) copyErr(err error) error {
	if err != nil {
		s.logger.Debug("media stream interrupted", "error", err)
	}
	return nil
}

func contentType(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ct := mime.TypeByExtension(filepath.Ext(f.Path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func etag(path string, size int64, mod time.Time) string {
	d := xxhash.New()
	fmt.Fprintf(d, "%s|%d|%d", path, size, mod.UnixNano())
	return fmt.Sprintf(`"%016x"`, d.Sum64())
}
