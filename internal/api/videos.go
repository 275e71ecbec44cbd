package api

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/export"
	"github.com/heimdex/heimdex-vision/internal/playback"
	"github.com/heimdex/heimdex-vision/internal/shots"
)

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Service.ListVideos(r.Context())
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func registerVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterVideoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := required("path", req.Path); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}

		v, job, err := cfg.Service.RegisterVideo(r.Context(), req.Path)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		resp := RegisterVideoResponse{Video: VideoToResponse(v)}
		if job != nil {
			resp.JobID = job.ID
		}
		WriteJSON(w, http.StatusAccepted, resp)
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, VideoToResponse(v))
	}
}

func deleteVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func videoShotsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		list, err := cfg.Service.Shots().ListByVideo(r.Context(), v.ID)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if list == nil {
			list = []*shots.Shot{}
		}
		WriteJSON(w, http.StatusOK, VideoShotsResponse{VideoID: v.ID, Count: len(list), Shots: list})
	}
}

func videoFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		serveFile(cfg, w, r, playback.File{Path: v.Path, Name: v.Filename})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.ExportRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if req.Format == "" {
			req.Format = "edl"
		}
		if req.Format != "edl" {
			writeErr(w, r, cfg.Logger, visionerr.InvalidInput("unsupported format %q", req.Format))
			return
		}

		v, err := cfg.Service.GetVideo(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		list, err := cfg.Service.Shots().ListByVideo(r.Context(), v.ID)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}

		clips, unknown := export.ClipsFromShots(v.Path, v.Filename, list, export.Selection{ShotIDs: req.ShotIDs, Tags: req.Tags})
		if len(clips) == 0 {
			writeErr(w, r, cfg.Logger, visionerr.New(visionerr.CodeInvalidInput, "no shots to export",
				visionerr.Field("video_id", v.ID)))
			return
		}

		project := export.SanitizeName(req.ProjectName, 120)
		if project == "" {
			project = export.SanitizeName(strings.TrimSuffix(v.Filename, filepath.Ext(v.Filename)), 120)
		}
		if project == "" {
			project = "export"
		}

		edl := export.GenerateEDL(clips, project, v.FPS)
		resp := export.ExportResponse{
			Status:       "ok",
			Format:       req.Format,
			ClipCount:    len(clips),
			FrameRate:    v.FPS,
			UnknownShots: unknown,
		}
		if req.OutputDir == "" {
			resp.EDL = edl
		} else {
			path, err := export.WriteEDL(req.OutputDir, project, edl)
			if err != nil {
				writeErr(w, r, cfg.Logger, err)
				return
			}
			resp.OutputPath = path
		}

		cfg.Logger.Info("exported shots", "video_id", v.ID, "clips", len(clips), "format", req.Format)
		WriteJSON(w, http.StatusOK, resp)
	}
}

func queryShotsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var tags []string
		for _, raw := range q["tags"] {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					tags = append(tags, t)
				}
			}
		}
		page, err := cfg.Service.Shots().Query(r.Context(), shots.Filter{
			VideoID:      q.Get("video_id"),
			MovementType: q.Get("movement_type"),
			Tone:         q.Get("emotional_tone"),
			Tags:         tags,
			Page:         queryInt(r, "page", 1),
			PageSize:     queryInt(r, "page_size", shots.DefaultPageSize),
		})
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, page)
	}
}

func suggestShotsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SuggestRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		limit := req.Limit
		if limit <= 0 {
			limit = 10
		}

		page, err := cfg.Service.Shots().Query(r.Context(), shots.Filter{
			Tone:     req.Tone,
			Tags:     req.Tags,
			Page:     1,
			PageSize: shots.MaxPageSize,
		})
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		suggestions := shots.Suggest(page.Shots, req.Query, limit)
		WriteJSON(w, http.StatusOK, SuggestResponse{
			Query:       req.Query,
			Candidates:  len(page.Shots),
			Suggestions: suggestions,
		})
	}
}

func getShotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shot, err := cfg.Service.Shots().GetShot(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, shot)
	}
}

func annotateShotHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ann shots.Annotation
		if err := decodeJSON(w, r, &ann); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		shot, err := cfg.Service.Shots().Annotate(r.Context(), chi.URLParam(r, "id"), ann)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, shot)
	}
}
