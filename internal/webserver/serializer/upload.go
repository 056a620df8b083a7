package serializer

import (
	"github.com/mdouchement/chunkd/internal/model"
	"github.com/mdouchement/chunkd/internal/webserver/service"
)

// Receipt returns the serialized form of an accepted chunk.
// When the chunk completed the upload, the merged file is inlined as base64 data.
func Receipt(receipt *service.Receipt, artifact *model.Artifact) map[string]interface{} {
	if receipt.File == nil {
		return map[string]interface{}{
			"success":     true,
			"chunkIndex":  receipt.ChunkIndex,
			"totalChunks": receipt.TotalChunks,
		}
	}

	file := receipt.File
	payload := map[string]interface{}{
		"success":     true,
		"sessionId":   file.SessionID,
		"fileName":    file.FileName,
		"fileSize":    file.FileSize,
		"mimeType":    file.ContentType,
		"totalChunks": file.TotalChunks,
		"checksum":    file.Checksum,
		"data":        file.Data, // encoding/json renders []byte as base64
	}
	if artifact != nil {
		payload["location"] = artifact.Location
	}

	return payload
}

// Artifacts returns the serialized form of the given models.
func Artifacts(artifacts []*model.Artifact) []map[string]interface{} {
	sl := make([]map[string]interface{}, 0, len(artifacts))

	for _, artifact := range artifacts {
		sl = append(sl, Artifact(artifact))
	}

	return sl
}

// Artifact returns the serialized form of the given model.
func Artifact(artifact *model.Artifact) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":   artifact.SessionID,
		"key":         artifact.Key,
		"sink":        artifact.Sink,
		"location":    artifact.Location,
		"size":        artifact.Size,
		"contentType": artifact.ContentType,
		"checksum":    artifact.Checksum,
		"created_at":  artifact.CreatedAt,
	}
}
