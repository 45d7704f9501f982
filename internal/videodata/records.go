// Package videodata maintains the per-clip metadata log (videodata.jsonl)
// and the append-only compilation log (compdata.jsonl).
package videodata

import (
	"encoding/json"
)

// VideoRecord is one output clip's metadata, keyed by Timestamp (the join
// key back to its combo record). FilePath stays empty until the pairing
// engine assigns a replay file; Description stays nil until the fill pass
// runs, and a nil description marks the record as not yet uploadable.
type VideoRecord struct {
	Timestamp    string          `json:"timestamp"`
	FilePath     string          `json:"file_path,omitempty"`
	Title        string          `json:"title"`
	Prompt       *string         `json:"prompt"`
	Description  *string         `json:"description"`
	Used         bool            `json:"used_in_compilation,omitempty"`
	Fixed        bool            `json:"metadata_fixed,omitempty"`
	Nametag      string          `json:"nametag,omitempty"`
	StageID      *int            `json:"stage_id,omitempty"`
	Combo        json.RawMessage `json:"combo,omitempty"`
	VideoID      string          `json:"video_id,omitempty"`
	Thumbnail    string          `json:"thumbnail,omitempty"`
	ThumbnailSet bool            `json:"thumbnail_set,omitempty"`
}

// CompilationRecord is one assembled multi-clip video. ClipFiles is exactly
// the ordered sequence consumed by the selector; ClipTitles runs parallel to
// it. Records are append-only and never mutated after creation, except for
// the upload bookkeeping fields.
type CompilationRecord struct {
	FilePath     string   `json:"file_path"`
	Title        string   `json:"title"`
	Description  *string  `json:"description"`
	ClipTitles   []string `json:"clip_titles"`
	ClipFiles    []string `json:"clip_files"`
	Thumbnail    string   `json:"thumbnail,omitempty"`
	VideoID      string   `json:"video_id,omitempty"`
	ThumbnailSet bool     `json:"thumbnail_set,omitempty"`
}

// legacyVideoRecord mirrors the field names older tooling wrote (including
// the historical misspelling of description). Rows in the old shape are
// migrated on read and written back in the canonical one.
type legacyVideoRecord struct {
	Timestamp   string  `json:"Timestamp"`
	FilePath    *string `json:"File Path"`
	Title       string  `json:"Title"`
	Prompt      *string `json:"Prompt"`
	Description *string `json:"Descripition"`
	Used        bool    `json:"Used In Compilation"`
	Fixed       bool    `json:"Metadata Fixed"`
	VideoID     string  `json:"VideoId"`
	Thumbnail   string  `json:"Thumbnail"`
	ThumbSet    bool    `json:"ThumbnailSet"`
}

func (v *VideoRecord) UnmarshalJSON(data []byte) error {
	// encoding/json matches field names case-insensitively, so a legacy
	// row would satisfy the canonical tags for Timestamp/Title/Prompt and
	// drop the rest. Probe the raw keys for names only the old tooling
	// wrote before choosing a shape.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, oldDesc := keys["Descripition"]
	_, oldPath := keys["File Path"]
	_, oldUsed := keys["Used In Compilation"]
	if oldDesc || oldPath || oldUsed {
		var legacy legacyVideoRecord
		if err := json.Unmarshal(data, &legacy); err != nil {
			return err
		}
		v.Timestamp = legacy.Timestamp
		if legacy.FilePath != nil {
			v.FilePath = *legacy.FilePath
		}
		v.Title = legacy.Title
		v.Prompt = legacy.Prompt
		v.Description = legacy.Description
		v.Used = legacy.Used
		v.Fixed = legacy.Fixed
		v.VideoID = legacy.VideoID
		v.Thumbnail = legacy.Thumbnail
		v.ThumbnailSet = legacy.ThumbSet
		return nil
	}

	type plain VideoRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = VideoRecord(p)
	return nil
}

// HasDescription reports whether the description fill pass has run for this
// record. Records without one are pending and must not be uploaded.
func (v *VideoRecord) HasDescription() bool {
	return v.Description != nil
}

func (v *VideoRecord) PromptText() string {
	if v.Prompt == nil {
		return ""
	}
	return *v.Prompt
}

func StringPtr(s string) *string { return &s }
