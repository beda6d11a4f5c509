package jobs

import (
	"context"
	"fmt"

	"github.com/hkcm91/StickerNestV3-sub013/internal/assets"
)

// saveAsset wraps the secondary asset-record write so that neither an error
// nor a panic in the store can escape into the handler's failure path.
func saveAsset(ctx context.Context, store assets.Store, a assets.Asset) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("asset store panic: %v", r)
		}
	}()
	return store.SaveAsset(ctx, a)
}

// saveModel is the model-record counterpart of saveAsset.
func saveModel(ctx context.Context, store assets.Store, m assets.Model) (id string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model store panic: %v", r)
		}
	}()
	return store.SaveModel(ctx, m)
}
