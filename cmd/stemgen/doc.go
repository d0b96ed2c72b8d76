// Command stemgen separates audio tracks into stems: route files to a
// separation engine, score the output, and keep a durable record of every
// attempt.
package main
