package model

import (
	"encoding/base64"
	"errors"
	"strings"
)

const (
	// PlaceholderImage is returned in place of any panel image that could not be generated.
	PlaceholderImage = "https://placehold.co/600x600?text=Generation+Failed"

	// InlinePCMPrefix marks managed-backend audio: raw PCM that needs the decode path rather than a player URL.
	InlinePCMPrefix = "base64:"

	// BlobPrefix marks audio held in the local blob store.
	BlobPrefix = "blob:"
)

func ImageDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func InlinePCMReference(data []byte) string {
	return InlinePCMPrefix + base64.StdEncoding.EncodeToString(data)
}

func IsInlinePCM(ref string) bool {
	return strings.HasPrefix(ref, InlinePCMPrefix)
}

func IsBlobReference(ref string) bool {
	return strings.HasPrefix(ref, BlobPrefix)
}

func DecodeInlinePCM(ref string) ([]byte, error) {
	if !IsInlinePCM(ref) {
		return nil, errors.New("not an inline PCM reference")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(ref, InlinePCMPrefix))
}

// DecodeDataURI splits a base64 data URI into its mime type and bytes.
func DecodeDataURI(ref string) (string, []byte, error) {
	if !strings.HasPrefix(ref, "data:") {
		return "", nil, errors.New("not a data URI")
	}
	header, payload, found := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !found {
		return "", nil, errors.New("data URI has no payload")
	}
	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mimeType, data, nil
}

// BlobStore holds raw bytes and hands back a locally-resolvable reference.
type BlobStore interface {
	Put(data []byte, mimeType string) string
}
