package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/conversation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/embeddings"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/services"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/topics"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

// statusFor maps a service error to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, conversation.ErrEmptyQuery),
		errors.Is(err, vectorstore.ErrEmptyDocuments),
		errors.Is(err, vectorstore.ErrInvalidSearch):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, generation.ErrGenerationFailed):
		return http.StatusBadGateway, "answer generation failed"
	case errors.Is(err, vectorstore.ErrEmbeddingFailed),
		errors.Is(err, embeddings.ErrEmbeddingFailed):
		return http.StatusBadGateway, "embedding failed"
	case errors.Is(err, vectorstore.ErrStorageUnavailable),
		errors.Is(err, topics.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage unavailable"
	case errors.Is(err, vectorstore.ErrCorruptIndex):
		return http.StatusInternalServerError, "index is corrupt"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// errorHandler writes every error as an ErrorResponse.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := http.StatusInternalServerError, "internal error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	} else {
		code, msg = statusFor(err)
	}

	if code >= http.StatusInternalServerError {
		s.logger.Error(c.Request().Context(), "request failed", zap.Error(err), zap.Int("status", code))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, ErrorResponse{Error: msg})
	}
	if err != nil {
		s.logger.Warn(c.Request().Context(), "failed to write error response", zap.Error(err))
	}
}
