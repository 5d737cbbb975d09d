// Package captcha solves the work-order login captcha through the Baidu OCR
// API and wraps recognition in a bounded retry that pulls a fresh image for
// every attempt.
package captcha
