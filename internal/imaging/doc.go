// Package imaging provides image file input and output for the detector.
//
// It decodes source images (with a path-keyed cache for long-running
// processes), reports file metadata, samples pixel colors in the detector's
// HSV convention, encodes images for JSON transport, and persists named
// diagnostic artifacts through the ArtifactStore interface.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward. Decoded images are
// turned upright according to their EXIF orientation before use.
//
// # Thread Safety
//
// ImageCache and MemoryStore are safe for concurrent use. DiskStore holds no
// state beyond its settings, but two writers saving the same name race on
// the file contents.
//
// # Error Handling
//
// Functions return errors for:
//   - Missing, unreadable or corrupt input files
//   - Output directories that cannot be created
//   - File names whose extension has no encoder
//   - Encoding failures
package imaging
