package export

import (
	"testing"

	"github.com/heimdex/heimdex-vision/internal/shots"
)

func sampleShots() []*shots.Shot {
	return []*shots.Shot{
		{ID: "s0", Index: 0, StartTime: 0, EndTime: 2.5, Tags: []string{"static"}},
		{ID: "s1", Index: 1, StartTime: 2.5, EndTime: 4, Tags: []string{"pan", "wide_shot"}},
		{ID: "s2", Index: 2, StartTime: 4, EndTime: 6.0004, Tags: []string{"static", "close_up"}},
	}
}

func TestClipsFromShots_All(t *testing.T) {
	clips, unknown := ClipsFromShots("/m/take.mp4", "take.mp4", sampleShots(), Selection{})

	if len(clips) != 3 {
		t.Fatalf("len(clips) = %d, want 3", len(clips))
	}
	if len(unknown) != 0 {
		t.Errorf("unknown = %v, want none", unknown)
	}
	if clips[1].ClipName != "take.mp4 shot 002" {
		t.Errorf("ClipName = %q, want %q", clips[1].ClipName, "take.mp4 shot 002")
	}
	if clips[1].StartMs != 2500 || clips[1].EndMs != 4000 {
		t.Errorf("clip[1] = %d-%d, want 2500-4000", clips[1].StartMs, clips[1].EndMs)
	}
	if clips[2].EndMs != 6000 {
		t.Errorf("clip[2].EndMs = %d, want 6000", clips[2].EndMs)
	}
	if clips[0].MediaPath != "/m/take.mp4" || clips[0].ShotID != "s0" {
		t.Errorf("clip[0] = %+v", clips[0])
	}
}

func TestClipsFromShots_ByID(t *testing.T) {
	clips, unknown := ClipsFromShots("/m/take.mp4", "take", sampleShots(), Selection{ShotIDs: []string{"s2", "nope", "s0"}})

	if len(clips) != 2 {
		t.Fatalf("len(clips) = %d, want 2", len(clips))
	}
	// timeline order, not request order
	if clips[0].ShotID != "s0" || clips[1].ShotID != "s2" {
		t.Errorf("clip order = %s,%s, want s0,s2", clips[0].ShotID, clips[1].ShotID)
	}
	if len(unknown) != 1 || unknown[0] != "nope" {
		t.Errorf("unknown = %v, want [nope]", unknown)
	}
}

func TestClipsFromShots_ByTag(t *testing.T) {
	clips, _ := ClipsFromShots("/m/take.mp4", "", sampleShots(), Selection{Tags: []string{"close_up", "pan"}})

	if len(clips) != 2 {
		t.Fatalf("len(clips) = %d, want 2", len(clips))
	}
	if clips[0].ClipName != "shot 002" {
		t.Errorf("ClipName = %q, want %q", clips[0].ClipName, "shot 002")
	}
}
