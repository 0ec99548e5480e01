// Package submit implements the batch submitter: it walks a directory of
// images, pushes every supported file to the master over one persistent
// connection, and waits for the completed artifacts.
/*
 * Copyright (c) 2024, ReadySKAHF. All rights reserved.
 */
package submit

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register decoders for DecodeConfig
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ReadySKAHF/gaussnet/api"
	"github.com/ReadySKAHF/gaussnet/api/wire"
	"github.com/ReadySKAHF/gaussnet/cmn/cos"
	"github.com/ReadySKAHF/gaussnet/cmn/mono"
	"github.com/ReadySKAHF/gaussnet/cmn/nlog"
	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

const dfltTimeout = 10 * time.Minute

type (
	Config struct {
		MasterAddr string
		InputDir   string
		OutputDir  string // "" disables writing artifacts back to disk
		FilterSize int
		Timeout    time.Duration
	}

	result struct {
		fileName string
		packetID string
		started  int64 // mono ns
		ch       <-chan *wire.ImagePacket
	}
)

// Run submits every supported image under cfg.InputDir and blocks until all
// responses arrived or the per-run deadline expired.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Timeout == 0 {
		cfg.Timeout = dfltTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := api.NewClient(ctx, cfg.MasterAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	files, err := listImages(cfg.InputDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no supported images under %q", cfg.InputDir)
	}
	nlog.Infof("submit: %d image%s => %s (filterSize=%d)",
		len(files), cos.Plural(len(files)), cfg.MasterAddr, cfg.FilterSize)

	var (
		errs    cos.Errs
		results = make([]result, 0, len(files))
	)
	for _, fqn := range files {
		res, err := submitOne(client, fqn, cfg.FilterSize)
		if err != nil {
			nlog.Errorf("submit: %s: %v", fqn, err)
			errs.Add(errors.Wrap(err, fqn))
			continue
		}
		results = append(results, res)
	}

	for i, res := range results {
		select {
		case packet, ok := <-res.ch:
			if !ok {
				nlog.Errorf("submit: %s (%s): connection lost", res.fileName, res.packetID)
				errs.Add(errors.Errorf("%s (%s): connection lost", res.fileName, res.packetID))
				continue
			}
			elapsed := mono.Since(res.started)
			nlog.Infof("submit: %s done in %v (%d bytes, %s)",
				res.fileName, elapsed, len(packet.ImageData), packet.Format)
			if cfg.OutputDir != "" {
				if err := writeArtifact(cfg.OutputDir, res.fileName, packet); err != nil {
					nlog.Errorln(err)
				}
			}
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%d of %d response%s missing",
				len(results)-i, len(results), cos.Plural(len(results)))
		}
	}
	if cnt, err := errs.JoinErr(); cnt > 0 {
		return errors.Wrapf(err, "%d job%s failed", cnt, cos.Plural(cnt))
	}
	return nil
}

func submitOne(client *api.Client, fqn string, filterSize int) (res result, err error) {
	data, err := os.ReadFile(fqn)
	if err != nil {
		return res, err
	}
	conf, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return res, errors.Wrapf(err, "decode %s", fqn)
	}
	packet := &wire.ImagePacket{
		PacketID:   cos.GenUUID(),
		FileName:   filepath.Base(fqn),
		ImageData:  data,
		Width:      conf.Width,
		Height:     conf.Height,
		Format:     format,
		FilterSize: filterSize,
	}
	res = result{
		fileName: packet.FileName,
		packetID: packet.PacketID,
		started:  mono.NanoTime(),
	}
	res.ch, err = client.Submit(packet)
	return res, err
}

func listImages(dir string) (files []string, err error) {
	err = godirwalk.Walk(dir, &godirwalk.Options{
		Callback: func(fqn string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(fqn)) {
			case ".png", ".jpg", ".jpeg":
				files = append(files, fqn)
			}
			return nil
		},
		Unsorted: false,
	})
	return files, err
}

func writeArtifact(dir, fileName string, packet *wire.ImagePacket) error {
	if err := cos.CreateDir(dir); err != nil {
		return err
	}
	ext := "." + packet.Format
	if packet.Format == "" {
		ext = ".png"
	}
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	fqn := filepath.Join(dir, base+".out"+ext)
	return os.WriteFile(fqn, packet.ImageData, 0o644)
}
