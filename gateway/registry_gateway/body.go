package registry_gateway

import (
	"io"
	"net/http"
)

// maxMetadataBody bounds how much of a metadata response is read; registry
// documents are small, anything larger is truncated
const maxMetadataBody = 4 << 20

func readBounded(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBody))
	if err != nil {
		return nil, err
	}
	return body, nil
}
