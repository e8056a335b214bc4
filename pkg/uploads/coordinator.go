// Package uploads sequences the two-stage image derivative upload: a
// bounded full-size copy followed by a square thumbnail, with unified
// progress reporting. The coordinator never creates messages; it only
// resolves the two references the send path embeds afterwards.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/valyala/bytebufferpool"

	"chatdb/pkg/logger"
	"chatdb/pkg/utils"
)

// ErrUploadFailure is the consolidated error for a failed image send:
// either derivative failing aborts the whole operation.
var ErrUploadFailure = errors.New("upload failed")

// ProgressFunc receives the unified progress on a 0.0-1.0 scale. The full
// derivative's transfer occupies [0.0, 0.8) and the thumbnail [0.8, 1.0];
// 1.0 is reported only after both references are resolved.
type ProgressFunc func(float64)

const fullStageWeight = 0.8

// Result holds the resolved references for both derivatives.
type Result struct {
	ImageURL     string `json:"image_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// Coordinator produces and uploads both derivatives of a source image.
type Coordinator struct {
	blobs     BlobStore
	fullEdge  int
	thumbEdge int
	quality   int
}

// NewCoordinator builds a Coordinator. Edges and quality fall back to the
// defaults (1920 long edge, 200px square, JPEG quality 85) when zero.
func NewCoordinator(blobs BlobStore, fullEdge, thumbEdge, quality int) *Coordinator {
	if fullEdge <= 0 {
		fullEdge = 1920
	}
	if thumbEdge <= 0 {
		thumbEdge = 200
	}
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &Coordinator{blobs: blobs, fullEdge: fullEdge, thumbEdge: thumbEdge, quality: quality}
}

// Upload decodes src, re-encodes both derivatives and uploads them in
// sequence. Failure at either stage resets progress and surfaces one
// consolidated error; no reference escapes a partial run.
func (c *Coordinator) Upload(ctx context.Context, src []byte, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(float64) {}
	}
	res, err := c.upload(ctx, src, progress)
	if err != nil {
		progress(0)
		return Result{}, fmt.Errorf("%w: %v", ErrUploadFailure, err)
	}
	progress(1.0)
	return res, nil
}

func (c *Coordinator) upload(ctx context.Context, src []byte, progress ProgressFunc) (Result, error) {
	mt := mimetype.Detect(src)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Result{}, fmt.Errorf("unsupported content type %s", mt.String())
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}

	id := utils.GenBlobID()

	// stage 1: bounded long-edge derivative, [0.0, 0.8)
	full := imaging.Fit(img, c.fullEdge, c.fullEdge, imaging.Lanczos)
	fullURL, err := c.encodeAndPut(ctx, id+"-full.jpg", full, func(frac float64) {
		progress(frac * fullStageWeight)
	})
	if err != nil {
		return Result{}, fmt.Errorf("full derivative: %w", err)
	}

	// stage 2: square thumbnail, [0.8, 1.0]
	thumb := imaging.Fill(img, c.thumbEdge, c.thumbEdge, imaging.Center, imaging.Lanczos)
	thumbURL, err := c.encodeAndPut(ctx, id+"-thumb.jpg", thumb, func(frac float64) {
		progress(fullStageWeight + frac*(1-fullStageWeight))
	})
	if err != nil {
		return Result{}, fmt.Errorf("thumbnail derivative: %w", err)
	}

	logger.Info("upload_complete", "blob", id, "image_url", fullURL, "thumbnail_url", thumbURL)
	return Result{ImageURL: fullURL, ThumbnailURL: thumbURL}, nil
}

func (c *Coordinator) encodeAndPut(ctx context.Context, name string, img *image.NRGBA, stage func(float64)) (string, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	pr := &progressReader{r: bytes.NewReader(buf.B), total: int64(len(buf.B)), stage: stage}
	url, err := c.blobs.Put(ctx, name, pr)
	if err != nil {
		return "", err
	}
	stage(1.0)
	return url, nil
}

// progressReader reports the transferred fraction of one stage as it is
// consumed by the blob store.
type progressReader struct {
	r     io.Reader
	total int64
	read  int64
	stage func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.stage(frac)
	}
	return n, err
}
