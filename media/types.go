package media

type AssetType string

const (
	AssetTypePreview  AssetType = "preview"
	AssetTypeOriginal AssetType = "original"
)

// Metadata holds the dimensions and capture time of an uploaded image.
type Metadata struct {
	Width       *int    `json:"width,omitempty"`
	Height      *int    `json:"height,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}

// Upload is one file received from the intake form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}
