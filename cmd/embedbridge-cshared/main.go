// Command embedbridge-cshared builds the host router as a C shared library:
//
//	go build -buildmode=c-shared -o libembedbridge.so ./cmd/embedbridge-cshared
//
// eb_call takes an operation name and a JSON argument object and returns a
// JSON response envelope that the caller must free with eb_free.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"context"
	"encoding/json"
	"sync"
	"unsafe"

	"github.com/dshills/embedbridge/config"
	"github.com/dshills/embedbridge/host"
	"github.com/dshills/embedbridge/logging"
	"go.uber.org/zap"
)

var (
	routerOnce sync.Once
	router     *host.Router
	logger     = logging.Nop()
)

// defaultRouter builds the process router on first use. Handles load their
// own configuration from the environment at initialize.
func defaultRouter() *host.Router {
	routerOnce.Do(func() {
		if cfg, err := config.FromEnv(); err == nil {
			if built, err := logging.New(cfg.Logging); err == nil {
				logger = built
			}
		}
		router = host.NewRouter(host.NewTable(), logger.Named("cshared"))
	})
	return router
}

//export eb_call
func eb_call(op *C.char, args *C.char) *C.char {
	var data []byte
	if args != nil {
		data = []byte(C.GoString(args))
	}
	resp := defaultRouter().Call(context.Background(), C.GoString(op), data)

	out, err := json.Marshal(resp)
	if err != nil {
		logger.Error("failed to encode response", zap.Error(err))
		out = []byte(`{"error":{"kind":"serialization","message":"Serialization error: failed to encode response"}}`)
	}
	return C.CString(string(out))
}

//export eb_free
func eb_free(p *C.char) {
	C.free(unsafe.Pointer(p))
}

func main() {}
