// shapedump runs the object graph locator over a JSON document and prints
// what it found. With -script the document is first passed through a Lua
// chain builder, the same way interact messages are.
//
// Usage:
//
//	shapedump [-region overworld] [-depth 4] [-script bench] [-scripts scripts] payload.json
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/aimloc/server/internal/geom"
	"github.com/aimloc/server/internal/locate"
	"github.com/aimloc/server/internal/scripting"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	region := flag.String("region", "", "region assumed when the document names none")
	depth := flag.Int("depth", locate.DefaultMaxDepth, "maximum traversal depth")
	script := flag.String("script", "", "Lua chain builder applied to the document first")
	scriptsDir := flag.String("scripts", "scripts", "Lua scripts directory")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: shapedump [flags] <payload.json>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := run(flag.Arg(0), geom.RegionID(*region), *depth, *script, *scriptsDir); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, region geom.RegionID, depth int, script, scriptsDir string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zapCfg.EncoderConfig.TimeKey = ""
	zapCfg.DisableCaller = true
	zapCfg.DisableStacktrace = true
	log, err := zapCfg.Build()
	if err != nil {
		return err
	}
	defer log.Sync()

	root := doc
	if script != "" {
		engine, err := scripting.NewEngine(scriptsDir, log)
		if err != nil {
			return fmt.Errorf("scripting: %w", err)
		}
		defer engine.Close()
		if root, err = engine.BuildChain(script, doc); err != nil {
			return err
		}
	}

	opts := locate.DefaultOptions()
	opts.MaxDepth = depth
	locator := locate.New(opts, nil, log, scripting.TableProbe{}, locate.DocProbe{}, locate.ReflectProbe{})

	if r, ok := locator.RegionOf(root); ok && !region.Valid() {
		fmt.Printf("region on root: %s\n", r)
		region = r
	}
	m, ok := locator.Locate(root, region)
	if !ok {
		fmt.Println("no location found")
		return nil
	}
	via := "(root)"
	if len(m.Path) > 0 {
		via = strings.Join(m.Path, ".")
	}
	loc := m.Location
	fmt.Printf("found %s %d %d %d via %s\n", loc.Region, loc.X, loc.Y, loc.Z, via)
	return nil
}
