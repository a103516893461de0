package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/crag/internal/answer"
	"github.com/kailas-cloud/crag/internal/domain"
	logpkg "github.com/kailas-cloud/crag/internal/logger"
	"github.com/kailas-cloud/crag/internal/transport/pdf"
	"github.com/kailas-cloud/crag/internal/usecase/chunk"
	healthuc "github.com/kailas-cloud/crag/internal/usecase/health"
)

const (
	// DefaultMaxUploadBytes limits a whole multipart request.
	DefaultMaxUploadBytes int64 = 64 << 20
	// DefaultMaxBodyBytes limits a JSON request.
	DefaultMaxBodyBytes int64 = 16 << 20

	multipartMemory = 8 << 20

	// StatusClientClosedRequest is reported when the caller went away mid-run.
	StatusClientClosedRequest = 499
)

// Asker runs the pipeline.
type Asker interface {
	Config() domain.PipelineConfig
	RunWithConfig(ctx context.Context, question, documentText string, cfg domain.PipelineConfig) (domain.Answer, error)
}

// Extractor converts an uploaded file into a document.
type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader) (domain.Document, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the ask API.
type Server struct {
	pipeline       Asker
	extractor      Extractor
	health         *healthuc.Service
	validate       *validator.Validate
	maxUploadBytes int64
	maxBodyBytes   int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(pipeline Asker, extractor Extractor, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:       pipeline,
		extractor:      extractor,
		health:         health,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: DefaultMaxUploadBytes,
		maxBodyBytes:   DefaultMaxBodyBytes,
		logger:         logger,
	}
	// Порядок важен: таймаут и отмена сильнее ошибки стадии.
	s.errorHandlers = []errorHandler{
		kindHandler(domain.ErrTimeout, http.StatusGatewayTimeout, domain.KindTimeout),
		kindHandler(domain.ErrCancelled, StatusClientClosedRequest, domain.KindCancelled),
		kindHandler(domain.ErrChunking, http.StatusBadRequest, domain.KindChunking),
		kindHandler(domain.ErrJudgeUnavailable, http.StatusServiceUnavailable, domain.KindJudgeUnavailable),
		kindHandler(domain.ErrEmbedding, http.StatusBadGateway, domain.KindEmbedding),
		kindHandler(domain.ErrGeneration, http.StatusBadGateway, domain.KindGeneration),
		kindHandler(domain.ErrFallbackUnavailable, http.StatusBadGateway, domain.KindFallbackUnavailable),
	}
	return s
}

// WithUploadLimits overrides the request size limits. Non-positive values keep the defaults.
func (s *Server) WithUploadLimits(maxUploadBytes, maxBodyBytes int64) *Server {
	if maxUploadBytes > 0 {
		s.maxUploadBytes = maxUploadBytes
	}
	if maxBodyBytes > 0 {
		s.maxBodyBytes = maxBodyBytes
	}
	return s
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "request body too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Question = strings.TrimSpace(req.Question)

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, validationMessage(err))
		return
	}

	corpus := req.DocumentText
	if len(req.Documents) > 0 {
		docs := make([]domain.Document, 0, len(req.Documents)+1)
		if req.DocumentText != "" {
			docs = append(docs, domain.Document{Name: "document", Text: req.DocumentText})
		}
		for _, d := range req.Documents {
			docs = append(docs, domain.Document{Name: d.Name, Text: d.Text})
		}
		corpus = chunk.ComposeCorpus(docs)
	}

	s.answer(w, r, req.Question, corpus, req.Options.apply(s.pipeline.Config()), req.Highlight, nil)
}

// AskPDF handles POST /v1/ask/pdf: multipart form with "question" and one or more "files".
func (s *Server) AskPDF(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "upload too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "question is required")
		return
	}

	headers := r.MultipartForm.File["files"]
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "at least one file is required")
		return
	}

	docs := make([]domain.Document, 0, len(headers))
	summaries := make([]documentSummary, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "cannot read "+fh.Filename)
			return
		}
		doc, err := s.extractor.Extract(r.Context(), fh.Filename, f)
		_ = f.Close()
		if err != nil {
			s.handleExtractError(w, r, err)
			return
		}
		docs = append(docs, doc)
		summaries = append(summaries, documentSummary{
			Name:    doc.Name,
			Runes:   utf8.RuneCountInString(doc.Text),
			Summary: pdf.Summary(doc.Text),
		})
	}

	cfg := s.pipeline.Config()
	if v := r.FormValue("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "top_k must be a positive integer")
			return
		}
		cfg.TopK = n
	}
	highlight, _ := strconv.ParseBool(r.FormValue("highlight"))

	s.answer(w, r, question, chunk.ComposeCorpus(docs), cfg, highlight, summaries)
}

func (s *Server) answer(
	w http.ResponseWriter,
	r *http.Request,
	question, corpus string,
	cfg domain.PipelineConfig,
	highlight bool,
	summaries []documentSummary,
) {
	ctx := logpkg.With(r.Context(),
		zap.Int("documents", len(summaries)),
		zap.Int("corpus_runes", utf8.RuneCountInString(corpus)),
		zap.Int("top_k", cfg.TopK),
	)
	r = r.WithContext(ctx)

	ans, err := s.pipeline.RunWithConfig(ctx, question, corpus, cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logpkg.FromContext(ctx).Debug("answer ready",
		zap.String("kind", string(ans.Kind)), zap.Int("fragments", len(ans.Fragments)))

	var hl func(string) string
	if highlight {
		hl = func(text string) string { return answer.Highlight(text) }
	}
	resp := answerToResponse(ans, hl)
	resp.Documents = summaries
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// safeDomainMessage returns a client-facing message without exposing provider internals.
func safeDomainMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindFallbackUnavailable:
		return "no relevant local context and web search could not answer the question"
	case domain.KindChunking:
		// Ошибка конфигурации от клиента, детали полезны.
		return err.Error()
	case domain.KindTimeout:
		return domain.ErrTimeout.Error()
	case domain.KindCancelled:
		return domain.ErrCancelled.Error()
	case domain.KindEmbedding:
		return domain.ErrEmbedding.Error()
	case domain.KindJudgeUnavailable:
		return domain.ErrJudgeUnavailable.Error()
	case domain.KindGeneration:
		return domain.ErrGeneration.Error()
	default:
		return "internal error"
	}
}

// kindHandler returns an errorHandler that matches a single pipeline error kind.
func kindHandler(sentinel error, status int, kind domain.ErrorKind) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := errorResponse{Code: ErrorCode(kind), Message: msg}
		var pe *domain.PipelineError
		if errors.As(err, &pe) {
			resp.State = pe.State.String()
		}
		writeJSON(w, status, resp)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("pipeline error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func (s *Server) handleExtractError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pdf.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, err.Error())
	case errors.Is(err, pdf.ErrUnsupported), errors.Is(err, pdf.ErrNoText):
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, StatusClientClosedRequest, ErrorCode(domain.KindCancelled), domain.ErrCancelled.Error())
	default:
		logpkg.FromContext(r.Context()).Warn("document extraction failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "cannot extract text: "+err.Error())
	}
}
