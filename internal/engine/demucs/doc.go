// Package demucs runs the local demucs separation model through its
// command-line interface and collects the four stems it writes.
package demucs
