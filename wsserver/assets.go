package wsserver

import (
	"context"

	"github.com/odin-telemetry/telemetry-sdk/wsprotocol"
)

// AssetProvider resolves a fetchAsset request's URI to its bytes. Fetch
// should return an error if the asset doesn't exist or can't be read; the
// error's message is sent back to the client as-is, so providers should
// avoid leaking sensitive detail in it.
type AssetProvider interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// AssetResponder sends the reply to one fetchAsset request. handleFetchAsset
// uses it from a separate goroutine, so a slow Fetch does not block the
// session's read loop.
type AssetResponder struct {
	cs        *clientSession
	requestID uint32
}

// SendData sends a successful response carrying the asset's bytes.
func (r *AssetResponder) SendData(data []byte) {
	r.cs.sendData(wsprotocol.EncodeFetchAssetResponse(r.requestID, true, "", data))
}

// SendError sends a failure response.
func (r *AssetResponder) SendError(message string) {
	r.cs.sendData(wsprotocol.EncodeFetchAssetResponse(r.requestID, false, message, nil))
}

func (cs *clientSession) handleFetchAsset(msg *wsprotocol.FetchAssetMessage) {
	if msg == nil || !cs.server.caps.has(wsprotocol.CapabilityAssets) {
		return
	}
	cs.server.cfg.Listener.OnFetchAsset(cs.id, msg.URI)

	responder := &AssetResponder{cs: cs, requestID: msg.RequestID}
	provider := cs.server.cfg.AssetProvider
	if provider == nil {
		responder.SendError("server has no asset provider configured")
		return
	}
	go func() {
		data, err := provider.Fetch(context.Background(), msg.URI)
		if err != nil {
			responder.SendError(err.Error())
			return
		}
		responder.SendData(data)
	}()
}
