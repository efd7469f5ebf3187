package metadata

import (
	"errors"
	"fmt"

	"github.com/barasher/go-exiftool"
	"k8s.io/klog/v2"
)

// tagNames pins each field to its group, so reads and writes address the
// same tag even when a file carries look-alikes such as XMP-pdf:Keywords.
var tagNames = map[Field]string{
	Subject:     "XMP-dc:Subject",
	Keywords:    "IPTC:Keywords",
	CatalogSets: "XMP-mediapro:CatalogSets",
	TagsList:    "XMP-digiKam:TagsList",
}

// Exiftool is a Store backed by a long-running exiftool process.
type Exiftool struct {
	et *exiftool.Exiftool
}

// NewExiftool starts exiftool. binary may be empty to use the one on $PATH.
// Tags are reported with their family 1 group, matching tagNames.
func NewExiftool(binary string) (*Exiftool, error) {
	opts := []func(*exiftool.Exiftool) error{exiftool.PrintGroupNames("1")}
	if binary != "" {
		opts = append(opts, exiftool.SetExiftoolBinaryPath(binary))
	}
	et, err := exiftool.NewExiftool(opts...)
	if err != nil {
		return nil, fmt.Errorf("exiftool: %w", err)
	}
	return &Exiftool{et: et}, nil
}

// Close stops the exiftool process.
func (s *Exiftool) Close() error {
	return s.et.Close()
}

func (s *Exiftool) extract(path string) (exiftool.FileMetadata, error) {
	fis := s.et.ExtractMetadata(path)
	if len(fis) == 0 {
		return exiftool.FileMetadata{}, readErr(path, errors.New("no metadata returned"))
	}
	fi := fis[0]
	if fi.Err != nil {
		return fi, readErr(path, fi.Err)
	}
	return fi, nil
}

// ReadTags returns the current values of every tag field.
func (s *Exiftool) ReadTags(path string) (Tags, error) {
	fi, err := s.extract(path)
	if err != nil {
		return nil, err
	}

	t := Tags{}
	for _, f := range Fields {
		vs, err := fi.GetStrings(tagNames[f])
		if err != nil {
			if errors.Is(err, exiftool.ErrKeyNotFound) {
				t[f] = nil
				continue
			}
			return nil, readErr(path, fmt.Errorf("%s: %w", f, err))
		}
		t[f] = vs
	}
	klog.V(2).Infof("%s tags: %v", path, t)
	return t, nil
}

func (s *Exiftool) write(path string, fields map[Field][]string, extra func(*exiftool.FileMetadata)) error {
	fm := exiftool.FileMetadata{File: path, Fields: map[string]interface{}{}}
	for f, vs := range fields {
		fm.SetStrings(tagNames[f], vs)
	}
	if extra != nil {
		extra(&fm)
	}
	if len(fm.Fields) == 0 {
		return nil
	}

	fms := []exiftool.FileMetadata{fm}
	s.et.WriteMetadata(fms)
	if fms[0].Err != nil {
		return writeErr(path, fms[0].Err)
	}
	return nil
}

// WriteTags appends the given additions to each field in a single exiftool call.
func (s *Exiftool) WriteTags(path string, additions Tags) error {
	current, err := s.ReadTags(path)
	if err != nil {
		return writeErr(path, err)
	}

	updates := map[Field][]string{}
	for _, f := range Fields {
		merged, changed := Merge(current[f], additions[f])
		if changed {
			updates[f] = merged
		}
	}
	if len(updates) == 0 {
		return nil
	}

	klog.V(1).Infof("writing %d fields to %s", len(updates), path)
	return s.write(path, updates, nil)
}

// Deduplicate rewrites fields that hold repeated values.
func (s *Exiftool) Deduplicate(path string) error {
	current, err := s.ReadTags(path)
	if err != nil {
		return writeErr(path, err)
	}

	updates := map[Field][]string{}
	for _, f := range Fields {
		if u, changed := Unique(current[f]); changed {
			updates[f] = u
		}
	}
	if len(updates) == 0 {
		return nil
	}

	klog.V(1).Infof("deduplicating %d fields in %s", len(updates), path)
	return s.write(path, updates, nil)
}

func (s *Exiftool) marker(path string) (string, error) {
	fi, err := s.extract(path)
	if err != nil {
		return "", err
	}
	v, err := fi.GetString(ProcessedTag)
	if err != nil {
		if errors.Is(err, exiftool.ErrKeyNotFound) {
			return "", nil
		}
		return "", readErr(path, err)
	}
	return v, nil
}

// IsProcessed reports whether the processed marker is present.
func (s *Exiftool) IsProcessed(path string) (bool, error) {
	v, err := s.marker(path)
	if err != nil {
		return false, err
	}
	return v == ProcessedValue, nil
}

// SetProcessed writes or removes the processed marker. A value in
// ProcessedTag that tagsync did not write is replaced with a warning when
// marking, and left alone when unmarking.
func (s *Exiftool) SetProcessed(path string, processed bool) error {
	v, err := s.marker(path)
	if err != nil {
		return writeErr(path, err)
	}
	foreign := v != "" && v != ProcessedValue
	switch {
	case processed && v == ProcessedValue:
		return nil
	case processed && foreign:
		klog.Warningf("%s: replacing %s %q with the processed marker", path, ProcessedTag, v)
	case !processed && (v == "" || foreign):
		return nil
	}

	return s.write(path, nil, func(fm *exiftool.FileMetadata) {
		if processed {
			fm.SetString(ProcessedTag, ProcessedValue)
			return
		}
		fm.Clear(ProcessedTag)
	})
}
