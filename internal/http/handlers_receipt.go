package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartasset/internal/log"
	"smartasset/internal/receipt"
)

const receiptField = "receipt"

// handleReceipt interprets one uploaded photo and replaces the session's
// pending drafts with the result. On any failure the buffer is left as it was.
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	if s.interpreter == nil {
		ErrorResponse(http.StatusServiceUnavailable, "Receipt scanning is not configured").Write(w)
		return
	}
	_, buf := s.sessionBuffer(w, r)
	logger := log.FromContext(r.Context())

	img, status, err := s.readReceiptImage(w, r)
	if err != nil {
		logger.WarnContext(r.Context(), "Rejected receipt upload", log.FieldError, err)
		ErrorResponse(status, err.Error()).Write(w)
		return
	}

	categories, err := s.ledger.CategoryNames(r.Context())
	if err != nil {
		s.storeFailed(w, r, log.OpInterpret, "Failed to load categories", err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.InterpretTimeout)
	defer cancel()
	start := time.Now()
	drafts, err := s.interpreter.Interpret(ctx, img, categories)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.observeInterpretation(interpretOutcome(err), elapsed, 0)
		s.structLogger.LogError(r.Context(), "Receipt interpretation failed", err, log.ErrorTypeInference, log.OpInterpret,
			log.NewFields().WithRequestID(requestID(r)))
		BadGatewayError(fmt.Sprintf("Could not read the receipt: %v", err)).Write(w)
		return
	}
	s.metrics.observeInterpretation("ok", elapsed, len(drafts))

	rows := buf.Replace(drafts)
	logger.InfoContext(r.Context(), "Receipt interpreted",
		log.FieldOperation, log.OpInterpret,
		log.FieldCount, len(rows),
		log.FieldDuration, elapsed.Milliseconds())

	resp := NewHTMXResponse().TriggerDraftsChanged()
	if len(rows) == 0 {
		resp.TriggerNotification(NotificationInfo, "No line items found on the receipt", 5000)
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("%d rows read, review before confirming", len(rows)))
	}
	s.render(w, r, "drafts", newDraftsView(rows, categories, s.today()), resp)
}

// readReceiptImage pulls the upload out of a size-limited multipart body and
// returns the status to answer with when it cannot.
func (s *Server) readReceiptImage(w http.ResponseWriter, r *http.Request) (receipt.Image, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return receipt.Image{}, http.StatusRequestEntityTooLarge, errors.New("image is too large")
		}
		return receipt.Image{}, http.StatusBadRequest, errors.New("invalid upload")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(receiptField)
	if err != nil {
		return receipt.Image{}, http.StatusBadRequest, errors.New("no image uploaded")
	}
	defer file.Close()
	if header.Size > s.opts.MaxUploadBytes {
		return receipt.Image{}, http.StatusRequestEntityTooLarge, errors.New("image is too large")
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		return receipt.Image{}, http.StatusBadRequest, errors.New("could not read upload")
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return receipt.Image{}, http.StatusRequestEntityTooLarge, errors.New("image is too large")
	}
	img, err := receipt.NewImage(data)
	if err != nil {
		return receipt.Image{}, http.StatusUnsupportedMediaType, errors.New("upload a JPEG, PNG or WebP image")
	}
	return img, 0, nil
}

func interpretOutcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, receipt.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, receipt.ErrMalformedResponse), errors.Is(err, receipt.ErrUnexpectedShape):
		return "malformed"
	default:
		return "error"
	}
}
