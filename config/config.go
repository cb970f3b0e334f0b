package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPreviewsSubDir  = "previews"
	DefaultOriginalsSubDir = "originals"

	DefaultPlaceholderImageURL = "https://images.unsplash.com/photo-1546069901-ba9599a7e63c"
)

const (
	defaultRecognitionQueueSize  = 64
	defaultNumRecognitionWorkers = 2
	defaultRecognitionLatencyMs  = 2000
	defaultPreviewMaxSize        = 480
	defaultMaxUploadMB           = 32
)

type Config struct {
	Port string

	// catalog database; the default shared in-memory DSN keeps nothing across restarts
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for staged originals and their previews
	PreviewsSubDir   string // single directory name under MediaStoragePath
	OriginalsSubDir  string
	PreviewsPath     string // full-calculated path for previews
	OriginalsPath    string // full-calculated path for staged originals

	// preview generation settings
	PreviewMaxSize int
	MaxUploadBytes int64

	// recognition simulation
	RecognitionLatency    time.Duration
	RecognitionQueueSize  int
	NumRecognitionWorkers int

	PlaceholderImageURL string

	// reject manual submissions that fail validation instead of coercing them
	StrictValidation bool

	// optional YAML file replacing the default restriction policy
	RestrictionPolicyPath string

	CORSAllowedOrigins []string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvBoolOrDefault(envVar string, defaultVal bool) bool {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s'. Using default %t. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// checkSubDir accepts a single directory name. Asset keys and preview URLs
// are built from one path segment.
func checkSubDir(envVar, dir string) error {
	if dir == "." || dir == ".." || strings.ContainsAny(dir, `/\`) {
		return fmt.Errorf("%s must be a single directory name, got '%s'", envVar, dir)
	}
	return nil
}

func LoadConfig() (Config, error) {
	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(os.TempDir(), "foodlens_media"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	previewSubDir := getEnvOrDefault("PREVIEWS_SUBDIR", DefaultPreviewsSubDir)
	originalsSubDir := getEnvOrDefault("ORIGINALS_SUBDIR", DefaultOriginalsSubDir)
	if err := checkSubDir("PREVIEWS_SUBDIR", previewSubDir); err != nil {
		return Config{}, err
	}
	if err := checkSubDir("ORIGINALS_SUBDIR", originalsSubDir); err != nil {
		return Config{}, err
	}
	if previewSubDir == originalsSubDir {
		return Config{}, fmt.Errorf("PREVIEWS_SUBDIR and ORIGINALS_SUBDIR must differ (both '%s')", previewSubDir)
	}

	origins := []string{"http://localhost:5173"}
	if raw := os.Getenv("CORS_ALLOWED_ORIGINS"); raw != "" {
		origins = origins[:0]
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	cfg := Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		DatabasePath:          getEnvOrDefault("DATABASE_PATH", "file::memory:?cache=shared"),
		MediaStoragePath:      absMediaStorage,
		PreviewsSubDir:        previewSubDir,
		OriginalsSubDir:       originalsSubDir,
		PreviewsPath:          filepath.Join(absMediaStorage, previewSubDir),
		OriginalsPath:         filepath.Join(absMediaStorage, originalsSubDir),
		PreviewMaxSize:        getEnvIntOrDefault("PREVIEW_MAX_SIZE", defaultPreviewMaxSize),
		MaxUploadBytes:        int64(getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)) << 20,
		RecognitionLatency:    time.Duration(getEnvIntOrDefault("RECOGNITION_LATENCY_MS", defaultRecognitionLatencyMs)) * time.Millisecond,
		RecognitionQueueSize:  getEnvIntOrDefault("RECOGNITION_QUEUE_SIZE", defaultRecognitionQueueSize),
		NumRecognitionWorkers: getEnvIntOrDefault("NUM_RECOGNITION_WORKERS", defaultNumRecognitionWorkers),
		PlaceholderImageURL:   getEnvOrDefault("PLACEHOLDER_IMAGE_URL", DefaultPlaceholderImageURL),
		StrictValidation:      getEnvBoolOrDefault("STRICT_VALIDATION", false),
		RestrictionPolicyPath: os.Getenv("RESTRICTION_POLICY_PATH"),
		CORSAllowedOrigins:    origins,
	}

	return cfg, nil
}
