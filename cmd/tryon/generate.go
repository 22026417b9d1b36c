package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tryonapi/logging"
	"tryonapi/services"
	"tryonapi/tryon"
)

var (
	personFile   string
	personBase64 string
	personURL    string
	outfitURL    string
	timeout      time.Duration
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Dress the person in the outfit and print the result image URL",
	Long: `Generate a virtual try-on image.

Examples:
  tryon generate --person me.jpg --outfit https://cdn.example.com/dress.png
  tryon generate --person-url https://cdn.example.com/me.jpg --outfit https://cdn.example.com/dress.png
  tryon generate --person-base64 "$(base64 -w0 me.jpg)" --outfit https://cdn.example.com/dress.png`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&personFile, "person", "", "Person photo file (JPEG, PNG, WebP or GIF)")
	generateCmd.Flags().StringVar(&personBase64, "person-base64", "", "Person photo as base64 or a data URL")
	generateCmd.Flags().StringVar(&personURL, "person-url", "", "Person photo URL, downloaded and sent inline")
	generateCmd.Flags().StringVar(&outfitURL, "outfit", "", "Outfit image URL")
	generateCmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (default: no timeout)")
	_ = generateCmd.MarkFlagRequired("outfit")
	generateCmd.MarkFlagsMutuallyExclusive("person", "person-base64", "person-url")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Logging.Level, "console")
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	personImage, err := readPersonImage(ctx)
	if err != nil {
		return err
	}

	client := tryon.NewClient(cfg.Client, tryon.WithLogger(log))
	imageURL, err := client.GenerateTryOnImage(ctx, tryon.Request{
		PersonImageBase64: personImage,
		OutfitImageURL:    outfitURL,
	})
	if err != nil {
		var tryErr *tryon.Error
		if errors.As(err, &tryErr) && tryErr.Code != "" {
			log.Debug("Generation failed", zap.String("code", tryErr.Code))
			return fmt.Errorf("%s (%s)", tryErr.Error(), tryErr.Code)
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), imageURL)
	return nil
}

func readPersonImage(ctx context.Context) (string, error) {
	switch {
	case personFile != "":
		data, err := os.ReadFile(personFile)
		if err != nil {
			return "", fmt.Errorf("failed to read person photo: %w", err)
		}
		return tryon.EncodeImageDataURL(data)
	case personURL != "":
		data, err := services.ReadImageFromURL(ctx, personURL)
		if err != nil {
			return "", err
		}
		return tryon.EncodeImageDataURL(data)
	case personBase64 != "":
		return tryon.ConvertToAPIBase64Format(personBase64), nil
	default:
		return "", errors.New("one of --person, --person-url or --person-base64 is required")
	}
}
