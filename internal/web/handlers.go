package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/YuujiKamura/tonsuu-checker/internal/ensemble"
	"github.com/YuujiKamura/tonsuu-checker/internal/estimate"
	"github.com/YuujiKamura/tonsuu-checker/internal/pipeline"
	"github.com/YuujiKamura/tonsuu-checker/internal/store"
)

// maxUploadBytes caps one estimate request, not one image. Phone photos
// arrive around 3-5 MB each.
const maxUploadBytes = 32 << 20

// handleHealth returns basic health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	})
}

// handleStatus returns system status
func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"status":    "running",
		"version":   s.version,
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
	}

	if s.analyzer != nil {
		status["busy"] = s.analyzer.Busy()
	}
	if s.feed != nil {
		status["feed_live"] = s.feed.Live()
		status["last_packet"] = s.feed.LastPacketTime()
	}
	if s.store != nil {
		if count, err := s.store.CountEstimates(c.Request.Context()); err == nil {
			status["estimates"] = count
		}
	}

	c.JSON(http.StatusOK, status)
}

// handleCreateEstimate accepts a multipart upload of load photos and
// runs a full estimation. The response carries the aggregated figures;
// 409 means another analysis is in flight.
func (s *Server) handleCreateEstimate(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Analyzer not available"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form", "message": err.Error()})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one image is required"})
		return
	}

	var images [][]byte
	var total int
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image", "message": err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image", "message": err.Error()})
			return
		}
		total += len(data)
		if total > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Upload too large"})
			return
		}
		images = append(images, data)
	}

	req := pipeline.AnalyzeRequest{
		Images:    images,
		SubjectID: c.PostForm("subject_id"),
		Feedback:  c.PostForm("feedback"),
	}
	if v := c.PostForm("capacity_hint"); v != "" {
		hint, err := strconv.ParseFloat(v, 64)
		if err != nil || hint <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid capacity_hint"})
			return
		}
		req.CapacityHint = hint
	}
	if v := c.PostForm("count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil || count <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid count"})
			return
		}
		req.Count = count
	}

	result, err := s.analyzer.Analyze(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			c.JSON(http.StatusConflict, gin.H{"error": "Another analysis is in progress"})
		case errors.Is(err, ensemble.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "message": err.Error()})
		case errors.Is(err, ensemble.ErrCredential):
			c.JSON(http.StatusBadGateway, gin.H{"error": "Inference provider rejected credentials"})
		default:
			var allFailed *ensemble.AllFailedError
			if errors.As(err, &allFailed) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "All ensemble samples failed", "message": allFailed.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis failed", "message": err.Error()})
		}
		return
	}

	if result.Record == nil {
		c.JSON(http.StatusOK, gin.H{"stale": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":         result.Record.ID,
		"subject_id": result.Record.SubjectID,
		"estimate":   result.Record.Estimate,
		"equipment":  result.Record.EquipmentClass,
		"load_grade": result.Record.LoadGrade,
		"created_at": result.Record.CreatedAt,
		"stale":      result.Stale,
	})
}

// handleGetEstimate returns one stored estimate by ID
func (s *Server) handleGetEstimate(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not available"})
		return
	}

	rec, err := s.store.GetEstimate(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		return
	}

	c.JSON(http.StatusOK, recordToJSON(rec))
}

// handleGetSnapshot serves the capture frame stored with an estimate
func (s *Server) handleGetSnapshot(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not available"})
		return
	}

	rec, err := s.store.GetEstimate(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Estimate not found"})
		return
	}
	if rec.SnapshotPath == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot for this estimate"})
		return
	}

	c.Header("Content-Type", "image/jpeg")
	c.File(rec.SnapshotPath)
}

// handleListSubjectEstimates returns the estimate history of one subject
func (s *Server) handleListSubjectEstimates(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not available"})
		return
	}

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	records, err := s.store.ListBySubject(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list estimates", "message": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToJSON(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"subject_id": c.Param("id"),
		"estimates":  out,
		"count":      len(out),
	})
}

// handleListReferences returns at most one recent sample per load grade
// for an equipment class, the same set the analyzer feeds back to the
// inference provider.
func (s *Server) handleListReferences(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not available"})
		return
	}

	class := estimate.NormalizeTruckClass(c.Query("class"))
	if class == estimate.TruckClassUnknown {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown equipment class", "class": c.Query("class")})
		return
	}

	records, err := s.store.ReferencesByEquipmentClass(c.Request.Context(), class)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list references", "message": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, recordToJSON(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"class":      class,
		"references": out,
	})
}

func recordToJSON(rec *store.Record) gin.H {
	out := gin.H{
		"id":         rec.ID,
		"subject_id": rec.SubjectID,
		"estimate":   rec.Estimate,
		"equipment":  rec.EquipmentClass,
		"load_grade": rec.LoadGrade,
		"created_at": rec.CreatedAt,
	}
	if rec.SnapshotPath != "" {
		out["snapshot_url"] = "/api/estimates/" + rec.ID + "/snapshot"
	}
	return out
}
