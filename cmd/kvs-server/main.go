// Command kvs-server binds a TCP listener and serves get/set/remove
// requests against a data directory until killed.
package main

import (
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/mvasko/kvs/internal/engine"
	"github.com/mvasko/kvs/internal/server"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "address to listen on")
	dir := flag.String("dir", ".", "data directory")
	engineFlavor := flag.String("engine", "kvs", "storage engine: kvs or bolt")
	threshold := flag.Uint64("compaction-threshold", engine.DefaultCompactionThreshold,
		"uncompacted bytes that trigger a compaction pass (kvs engine only)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	eng, err := openEngine(*engineFlavor, *dir, sugar, *threshold)
	if err != nil {
		sugar.Fatalw("open engine failed", "engine", *engineFlavor, "dir", *dir, "error", err)
	}
	defer eng.Close()

	srv := server.New(*addr, eng, sugar)
	if err := srv.Run(); err != nil {
		sugar.Errorw("server stopped", "error", err)
		os.Exit(1)
	}
}

func openEngine(flavor, dir string, logger *zap.SugaredLogger, threshold uint64) (engine.Engine, error) {
	switch flavor {
	case "kvs":
		return engine.Open(dir, logger, threshold)
	case "bolt":
		return engine.OpenBolt(dir)
	default:
		logger.Fatalw("unknown engine flavor", "engine", flavor)
		return nil, nil
	}
}
