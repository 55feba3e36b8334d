package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/resolvehq/tribunal-api/config"
)

// Evidence handles cloudinary evidence uploads for cases
type Evidence struct{}

const evidenceFolder = "tribunal-evidence"

// UploadEvidenceHandler stores a multipart "file" upload in cloudinary and
// returns the reference the client should attach to the case at filing time.
func (e Evidence) UploadEvidenceHandler(w http.ResponseWriter, r *http.Request) {
	// 10MB cap on evidence attachments
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		config.ErrorStatus("failed to parse multipart form", http.StatusBadRequest, w, err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		config.ErrorStatus("missing file field", http.StatusBadRequest, w, err)
		return
	}
	defer file.Close()

	cld, err := cloudinary.New()
	if err != nil {
		config.ErrorStatus("failed to init cloudinary", http.StatusInternalServerError, w, err)
		return
	}

	resp, err := cld.Upload.Upload(r.Context(), file, uploader.UploadParams{Folder: evidenceFolder})
	if err != nil {
		config.ErrorStatus("failed to upload evidence", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{
		"evidenceRef": resp.SecureURL,
		"publicId":    resp.PublicID,
	})
}

// GenerateSignature generates a signature for direct-to-cloudinary uploads
func (e Evidence) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(h.Sum(nil))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	})
}

// destroyEvidenceAsset removes the cloudinary asset backing a deleted case.
// Best-effort: the case record is already gone, so failures are only logged.
func destroyEvidenceAsset(publicID string) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.S().Errorw("panic destroying evidence asset", "publicID", publicID, "panic", rec)
		}
	}()

	cld, err := cloudinary.New()
	if err != nil {
		zap.S().Errorw("failed to init cloudinary for asset cleanup", "publicID", publicID, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID}); err != nil {
		zap.S().Errorw("failed to destroy evidence asset", "publicID", publicID, "error", err)
	}
}
