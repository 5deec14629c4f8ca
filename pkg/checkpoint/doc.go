// Package checkpoint lets a batch run pick up where an interrupted one stopped.
//
// A checkpoint is keyed by the prompt source and its prompts, and records the
// image written for each prompt. Re-running the same batch with --resume
// skips prompts that already have an image.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/gemimg/checkpoints/
//   - macOS: ~/Library/Application Support/gemimg/checkpoints/
//   - Windows: %APPDATA%/gemimg/checkpoints/
package checkpoint
