package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-vision/internal/anomaly"
	visionerr "github.com/heimdex/heimdex-vision/internal/errors"
	"github.com/heimdex/heimdex-vision/internal/playback"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory.
const multipartMemory = 8 << 20

func listMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", 100)
		if limit <= 0 || limit > 1000 {
			limit = 100
		}
		assets, err := cfg.Service.ListAssets(r.Context(), limit)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		resp := AssetsResponse{Assets: make([]AssetResponse, len(assets))}
		for i, a := range assets {
			resp.Assets[i] = AssetToResponse(a)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func uploadMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := uploadLimit(cfg)
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErr(w, r, cfg.Logger, visionerr.New(visionerr.CodeInvalidInput, "upload exceeds size limit",
					visionerr.Field("limit_bytes", limit)))
				return
			}
			writeErr(w, r, cfg.Logger, visionerr.Wrap(err, visionerr.CodeServerRequestInvalid, "invalid multipart body"))
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			writeErr(w, r, cfg.Logger, visionerr.New(visionerr.CodeServerRequestInvalid, "multipart field \"file\" is required"))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeErr(w, r, cfg.Logger, visionerr.Wrap(err, visionerr.CodeServerRequestInvalid, "failed to read upload"))
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "application/octet-stream" {
			// Generic clients send this for any file; sniff instead.
			contentType = ""
		}
		asset, job, err := cfg.Service.UploadAsset(r.Context(), header.Filename, contentType, data)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		resp := UploadResponse{Asset: AssetToResponse(asset)}
		if job != nil {
			resp.JobID = job.ID
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func getMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Service.GetAsset(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AssetToResponse(asset))
	}
}

func deleteMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.DeleteAsset(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func mediaFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Service.GetAsset(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		serveFile(cfg, w, r, playback.File{Path: asset.StoragePath, ContentType: asset.ContentType, Name: asset.Filename})
	}
}

func serveFile(cfg ServerConfig, w http.ResponseWriter, r *http.Request, f playback.File) {
	srv := cfg.Playback
	if srv == nil {
		srv = playback.NewServer(cfg.Logger)
	}
	if err := srv.Serve(w, r, f); err != nil {
		writeErr(w, r, cfg.Logger, err)
	}
}

func extractFeaturesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := cfg.Service.ExtractFeatures(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, AssetToResponse(asset))
	}
}

// assetHandler decodes a request of type T, checks its batch size and writes the report
// produced by run.
func assetHandler[T any](cfg ServerConfig, batch func(*T) int, run func(*http.Request, *T) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := new(T)
		if err := decodeJSON(w, r, req); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		if err := checkBatch(cfg, batch(req)); err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		report, err := run(r, req)
		if err != nil {
			writeErr(w, r, cfg.Logger, err)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func required(name, id string) error {
	if id == "" {
		return visionerr.InvalidInput("%s is required", name)
	}
	return nil
}

func assetMatchHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *MatchRequest) int { return len(req.CandidateIDs) },
		func(r *http.Request, req *MatchRequest) (any, error) {
			if err := required("reference_asset_id", req.ReferenceID); err != nil {
				return nil, err
			}
			return cfg.Service.MatchAssets(r.Context(), req.ReferenceID, req.CandidateIDs)
		})
}

func assetSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *SearchRequest) int { return len(req.DatasetIDs) },
		func(r *http.Request, req *SearchRequest) (any, error) {
			if err := required("query_asset_id", req.QueryID); err != nil {
				return nil, err
			}
			return cfg.Service.SearchAssets(r.Context(), req.QueryID, req.DatasetIDs, req.TopK)
		})
}

func assetConsistencyHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(*ConsistencyRequest) int { return 2 },
		func(r *http.Request, req *ConsistencyRequest) (any, error) {
			if err := required("asset_id_1", req.AssetID1); err != nil {
				return nil, err
			}
			if err := required("asset_id_2", req.AssetID2); err != nil {
				return nil, err
			}
			return cfg.Service.CheckConsistency(r.Context(), req.AssetID1, req.AssetID2)
		})
}

func assetCharactersHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *CharactersRequest) int { return len(req.TestIDs) },
		func(r *http.Request, req *CharactersRequest) (any, error) {
			if err := required("reference_asset_id", req.ReferenceID); err != nil {
				return nil, err
			}
			return cfg.Service.MatchCharacters(r.Context(), req.ReferenceID, req.TestIDs)
		})
}

func assetGroupHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *AssetGroupRequest) int { return len(req.AssetIDs) },
		func(r *http.Request, req *AssetGroupRequest) (any, error) {
			threshold := orDefault(req.Threshold, cfg.Defaults.SimilarityThreshold)
			return cfg.Service.GroupAssets(r.Context(), req.AssetIDs, threshold)
		})
}

func assetQualityHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *AssetQualityRequest) int { return len(req.AssetIDs) },
		func(r *http.Request, req *AssetQualityRequest) (any, error) {
			threshold := orDefault(req.Threshold, cfg.Defaults.QualityThreshold)
			return cfg.Service.AssessQuality(r.Context(), req.AssetIDs, threshold)
		})
}

func assetAnomaliesHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *AssetAnomalyRequest) int { return max(len(req.ReferenceIDs), len(req.TestIDs)) },
		func(r *http.Request, req *AssetAnomalyRequest) (any, error) {
			det := anomaly.NewDetector()
			det.ScoreThreshold = orDefault(req.ScoreThreshold, det.ScoreThreshold)
			return cfg.Service.DetectAnomalies(r.Context(), req.ReferenceIDs, req.TestIDs, det)
		})
}

func assetClustersHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *AssetClusterRequest) int { return len(req.AssetIDs) },
		func(r *http.Request, req *AssetClusterRequest) (any, error) {
			return cfg.Service.ClusterAssets(r.Context(), req.AssetIDs, req.K)
		})
}

func shotConsistencyHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *ShotConsistencyRequest) int { return len(req.ShotIDs) },
		func(r *http.Request, req *ShotConsistencyRequest) (any, error) {
			if err := required("character_reference_asset_id", req.ReferenceID); err != nil {
				return nil, err
			}
			return cfg.Service.ValidateShots(r.Context(), req.ReferenceID, req.ShotIDs)
		})
}

func enforcementHandler(cfg ServerConfig) http.HandlerFunc {
	return assetHandler(cfg,
		func(req *EnforcementRequest) int { return len(req.GeneratedIDs) },
		func(r *http.Request, req *EnforcementRequest) (any, error) {
			if err := required("master_reference_asset_id", req.MasterID); err != nil {
				return nil, err
			}
			return cfg.Service.EnforceReference(r.Context(), req.MasterID, req.GeneratedIDs, req.Threshold)
		})
}
