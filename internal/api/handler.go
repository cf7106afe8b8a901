package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/guttosm/nsepulse/internal/domain/dto"
	"github.com/guttosm/nsepulse/internal/domain/models"
	"github.com/guttosm/nsepulse/internal/ingestion"
	"github.com/guttosm/nsepulse/internal/logger"
	"github.com/guttosm/nsepulse/internal/middleware"
	"github.com/guttosm/nsepulse/internal/service"
)

const (
	dateLayout = "2006-01-02"
	csvType    = "text/csv"

	msgNotCSV         = "Please upload a CSV file."
	msgInvalidCSV     = "Invalid CSV file."
	msgMissingColumns = "Missing required columns."
	msgPersistence    = "Failed to store records."
)

// Uploader ingests a stored upload file. Implemented by *ingestion.Ingester.
type Uploader interface {
	IngestFile(ctx context.Context, path, source string) (*ingestion.Report, error)
}

// Handler provides HTTP handlers for CSV uploads and aggregate queries.
//
// Responsibilities:
//   - Validate the uploaded file and incoming query parameters
//   - Delegate ingestion to the Uploader and queries to the QueryService
//   - Translate results into response DTOs
//   - Return structured JSON responses with appropriate HTTP status codes
type Handler struct {
	svc       service.QueryService
	uploader  Uploader
	uploadDir string
	maxBytes  int64
}

// NewHandler constructs a new Handler instance.
//
// Parameters:
//   - svc (service.QueryService): aggregate queries.
//   - uploader (Uploader): ingestion pipeline for uploaded files.
//   - uploadDir (string): directory uploaded files are stored in before ingestion.
//   - maxBytes (int64): request body limit for uploads; non-positive disables it.
//
// Returns:
//   - *Handler: A handler ready to be registered with the router.
func NewHandler(svc service.QueryService, uploader Uploader, uploadDir string, maxBytes int64) *Handler {
	return &Handler{svc: svc, uploader: uploader, uploadDir: uploadDir, maxBytes: maxBytes}
}

// Upload handles POST /api/upload requests.
//
// Upload godoc
// @Summary      Upload a daily equity CSV
// @Description  Validates every row, stores the valid ones in one batch and reports rejected rows
// @Tags         upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "CSV file (text/csv)"
// @Success      200   {object}  dto.UploadResponse  "Success"
// @Failure      400   {object}  dto.ErrorResponse   "Bad Request"
// @Failure      500   {object}  dto.ErrorResponse   "Internal Error"
// @Router       /api/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	// ─── Validate the "file" field ────────────────────────────
	fh, err := c.FormFile("file")
	if err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, msgNotCSV, err)
		return
	}
	if mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type")); err != nil || mediaType != csvType {
		middleware.AbortWithError(c, http.StatusBadRequest, msgNotCSV, nil)
		return
	}

	// ─── Store, then ingest ───────────────────────────────────
	source := filepath.Base(fh.Filename)
	dst := filepath.Join(h.uploadDir, uuid.NewString()+"-"+source)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "failed to store upload", err)
		return
	}

	report, err := h.uploader.IngestFile(c.Request.Context(), dst, source)
	if err != nil {
		status, msg := uploadError(err)
		logger.L().Warn().Err(err).Str("source", source).Int("status", status).Msg("upload failed")
		middleware.AbortWithError(c, status, msg, err)
		return
	}

	c.JSON(http.StatusOK, toUploadResponse(report))
}

// uploadError maps an ingestion failure to its status code and message.
func uploadError(err error) (int, string) {
	var mce *ingestion.MissingColumnsError
	switch {
	case errors.As(err, &mce):
		return http.StatusBadRequest, msgMissingColumns
	case ingestion.IsInputError(err):
		return http.StatusBadRequest, msgInvalidCSV
	case errors.Is(err, ingestion.ErrPersistence):
		return http.StatusInternalServerError, msgPersistence
	default:
		return http.StatusInternalServerError, "failed to process upload"
	}
}

func toUploadResponse(r *ingestion.Report) dto.UploadResponse {
	resp := dto.UploadResponse{
		TotalRecords:      r.Total,
		SuccessfulRecords: r.Successful,
		FailedRecords:     r.Failed,
		Errors:            make([]dto.RowError, 0, len(r.Errors)),
	}
	for _, f := range r.Errors {
		resp.Errors = append(resp.Errors, dto.RowError{Row: f.Row, Reason: f.Reason})
	}
	return resp
}

// HighestVolume godoc
// @Summary      Record with the highest volume
// @Description  Returns the single record with the largest traded volume in the inclusive date range
// @Tags         query
// @Produce      json
// @Param        start_date  query     string  false  "Start date in YYYY-MM-DD" example(2015-01-01)
// @Param        end_date    query     string  false  "End date in YYYY-MM-DD" example(2015-12-31)
// @Param        symbol      query     string  false  "Exact symbol" example(TCS)
// @Success      200         {object}  dto.HighestVolumeResponse  "Success"
// @Failure      400         {object}  dto.ErrorResponse          "Bad Request"
// @Failure      500         {object}  dto.ErrorResponse          "Internal Error"
// @Router       /api/highest_volume [get]
func (h *Handler) HighestVolume(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	rec, err := h.svc.HighestVolume(c.Request.Context(), filter)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "failed to fetch highest volume", err)
		return
	}

	c.JSON(http.StatusOK, dto.HighestVolumeResponse{HighestVolume: rec})
}

// AverageClose godoc
// @Summary      Average close price
// @Description  Returns the mean close price in the inclusive date range, null when nothing matches
// @Tags         query
// @Produce      json
// @Param        start_date  query     string  false  "Start date in YYYY-MM-DD" example(2015-01-01)
// @Param        end_date    query     string  false  "End date in YYYY-MM-DD" example(2015-12-31)
// @Param        symbol      query     string  false  "Exact symbol" example(TCS)
// @Success      200         {object}  dto.AverageCloseResponse  "Success"
// @Failure      400         {object}  dto.ErrorResponse         "Bad Request"
// @Failure      500         {object}  dto.ErrorResponse         "Internal Error"
// @Router       /api/average_close [get]
func (h *Handler) AverageClose(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	avg, err := h.svc.AverageClose(c.Request.Context(), filter)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "failed to fetch average close", err)
		return
	}

	c.JSON(http.StatusOK, dto.AverageCloseResponse{AverageClose: avg})
}

// AverageVWAP godoc
// @Summary      Average VWAP
// @Description  Returns the mean volume-weighted average price in the inclusive date range, null when nothing matches
// @Tags         query
// @Produce      json
// @Param        start_date  query     string  false  "Start date in YYYY-MM-DD" example(2015-01-01)
// @Param        end_date    query     string  false  "End date in YYYY-MM-DD" example(2015-12-31)
// @Param        symbol      query     string  false  "Exact symbol" example(TCS)
// @Success      200         {object}  dto.AverageVWAPResponse  "Success"
// @Failure      400         {object}  dto.ErrorResponse        "Bad Request"
// @Failure      500         {object}  dto.ErrorResponse        "Internal Error"
// @Router       /api/average_vwap [get]
func (h *Handler) AverageVWAP(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	avg, err := h.svc.AverageVWAP(c.Request.Context(), filter)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "failed to fetch average vwap", err)
		return
	}

	c.JSON(http.StatusOK, dto.AverageVWAPResponse{AverageVWAP: avg})
}

// bindFilter parses start_date, end_date and symbol. On failure it writes a
// 400 and returns false.
func bindFilter(c *gin.Context) (models.Filter, bool) {
	var filter models.Filter

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"start_date", &filter.Start},
		{"end_date", &filter.End},
	} {
		s := strings.TrimSpace(c.Query(p.name))
		if s == "" {
			continue
		}
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			middleware.AbortWithError(c, http.StatusBadRequest, "invalid "+p.name+" format, expected YYYY-MM-DD", err)
			return filter, false
		}
		*p.dst = &t
	}

	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		middleware.AbortWithError(c, http.StatusBadRequest, "start_date must not be after end_date", nil)
		return filter, false
	}

	filter.Symbol = strings.TrimSpace(c.Query("symbol"))
	return filter, true
}
