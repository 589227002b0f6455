package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/menta2k/autorig"
	"github.com/menta2k/autorig/internal/metrics"
	"github.com/menta2k/autorig/pkg/types"
)

var (
	json     = jsoniter.ConfigCompatibleWithStandardLibrary
	validate = validator.New()
)

// multipart overhead allowed on top of the file limit
const formSlack = 1 << 20

func (s *Server) processImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes+formSlack)

	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, ErrTooLarge)
			return
		}
		abortWithError(c, ErrNoFile)
		return
	}
	if header.Size > s.opts.MaxUploadBytes {
		abortWithError(c, ErrTooLarge)
		return
	}

	f, err := header.Open()
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	analysis := s.parseAnalysis(c)

	res, err := s.engine.Process(c.Request.Context(), autorig.Upload{Filename: header.Filename, Data: data}, analysis)
	if err != nil {
		switch {
		case errors.Is(err, autorig.ErrEmptyUpload):
			abortWithError(c, ErrNoFile)
		case errors.Is(err, autorig.ErrUnsupportedImage):
			abortWithError(c, NewError(http.StatusUnsupportedMediaType, err.Error()))
		default:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":    "Processing failed: " + err.Error(),
				"fallback": true,
			})
		}
		return
	}

	s.record(res)
	c.JSON(http.StatusOK, newProcessResponse(res))
}

// parseAnalysis reads the optional frontendAnalysis field. A report that does
// not parse is dropped; a section that fails validation is dropped on its own.
func (s *Server) parseAnalysis(c *gin.Context) *types.ClientAnalysis {
	raw := c.PostForm("frontendAnalysis")
	if raw == "" {
		return nil
	}
	var analysis types.ClientAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		s.logger.Warn("ignoring malformed frontendAnalysis",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		return nil
	}
	err := validate.Struct(&analysis)
	if err == nil {
		return &analysis
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		s.logger.Warn("ignoring invalid frontendAnalysis",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
		return nil
	}
	for _, fe := range verrs {
		section, ok := dropSection(&analysis, fe.StructNamespace())
		if !ok {
			s.logger.Warn("ignoring invalid frontendAnalysis",
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.String("field", fe.StructNamespace()))
			return nil
		}
		s.logger.Warn("ignoring invalid frontendAnalysis section",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("section", section),
			zap.String("field", fe.Field()),
			zap.String("rule", fe.Tag()))
	}
	if analysis.Empty() {
		return nil
	}
	return &analysis
}

// dropSection clears the top-level section a field namespace such as
// "ClientAnalysis.DetailLevel.Score" belongs to.
func dropSection(a *types.ClientAnalysis, namespace string) (string, bool) {
	parts := strings.SplitN(namespace, ".", 3)
	if len(parts) < 2 {
		return "", false
	}
	switch parts[1] {
	case "BasicInfo":
		a.BasicInfo = nil
	case "ColorAnalysis":
		a.ColorAnalysis = nil
	case "ShapeDetection":
		a.ShapeDetection = nil
	case "StyleClassification":
		a.StyleClassification = nil
	case "DetailLevel":
		a.DetailLevel = nil
	default:
		return "", false
	}
	return parts[1], true
}

func (s *Server) record(res *autorig.Result) {
	info := res.ProcessingInfo
	switch {
	case !info.AIUsed:
		s.metrics.RecordDetection(metrics.OutcomeFallback, info.FallbackReason)
	case info.Fallback:
		s.metrics.RecordDetection(metrics.OutcomePartial, "")
	default:
		s.metrics.RecordDetection(metrics.OutcomeLive, "")
	}
	s.metrics.RecordResult(len(res.Layers), string(res.RiggedModel.RigType))
}
