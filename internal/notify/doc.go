// Package notify tells the user that a background download is ready.
package notify
