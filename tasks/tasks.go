package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"tryonapi/models"
	"tryonapi/services"
	"tryonapi/tryon"
)

const TypeTryOnGenerate = "tryon:generate"

type TryOnGenerationPayload struct {
	PersonImageBase64 string `json:"person_image_base64"`
	OutfitImageURL    string `json:"outfit_image_url"`
}

// TryOnGenerator is satisfied by *tryon.Client.
type TryOnGenerator interface {
	GenerateTryOnImage(ctx context.Context, req tryon.Request) (string, error)
}

// NewTryOnGenerationTask expects personImage already in data URL form.
func NewTryOnGenerationTask(personImage, outfitImageURL string) (*asynq.Task, error) {
	payload, err := json.Marshal(TryOnGenerationPayload{
		PersonImageBase64: personImage,
		OutfitImageURL:    outfitImageURL,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTryOnGenerate, payload), nil
}

// ProcessTryOn runs one generation. The returned result is filled in for
// both outcomes so it can be stored as the task result either way.
func ProcessTryOn(ctx context.Context, p TryOnGenerationPayload, generator TryOnGenerator) (models.TryOnJobResult, error) {
	imageURL, err := generator.GenerateTryOnImage(ctx, tryon.Request{
		PersonImageBase64: p.PersonImageBase64,
		OutfitImageURL:    p.OutfitImageURL,
	})
	if err != nil {
		result := models.TryOnJobResult{Error: err.Error()}
		var tryErr *tryon.Error
		if errors.As(err, &tryErr) {
			result.ErrorCode = tryErr.Code
		}
		return result, err
	}
	return models.TryOnJobResult{ImageURL: imageURL}, nil
}

func HandleTryOnGenerationTask(ctx context.Context, t *asynq.Task, generator TryOnGenerator, logger *zap.Logger) error {
	var p TryOnGenerationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.PersonImageBase64 == "" || p.OutfitImageURL == "" {
		return fmt.Errorf("try-on payload is missing an image: %w", asynq.SkipRetry)
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log := logger.With(zap.String("job_id", taskID))
	log.Info("Processing try-on generation",
		zap.Int("person_image_bytes", len(p.PersonImageBase64)),
		zap.String("outfit_image_url", p.OutfitImageURL))

	result, genErr := ProcessTryOn(ctx, p, generator)

	if w := t.ResultWriter(); w != nil {
		raw, err := json.Marshal(result)
		if err == nil {
			_, err = w.Write(raw)
		}
		if err != nil {
			log.Warn("Could not store try-on result", zap.Error(err))
		}
	}

	if genErr != nil {
		services.TryOnJobsTotal.WithLabelValues(services.OutcomeFailed).Inc()
		log.Error("Try-on generation failed",
			zap.String("error_code", result.ErrorCode),
			zap.Error(genErr))

		var tryErr *tryon.Error
		if errors.As(genErr, &tryErr) && tryErr.Err != nil {
			// transport failures may succeed on a retry
			return genErr
		}
		sentry.CaptureException(genErr)
		return fmt.Errorf("%v: %w", genErr, asynq.SkipRetry)
	}

	services.TryOnJobsTotal.WithLabelValues(services.OutcomeCompleted).Inc()
	log.Info("Try-on generation completed")
	return nil
}
