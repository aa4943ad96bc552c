// Package credentials stores login cookies for the video sites that need
// them and hands them to the metadata resolver.
//
// Sites are identified by the host of the shared page URL. Cookies are kept
// in a gocloud blob bucket under credentials/<service>.json, so any bucket
// URL works as storage (file://, mem://, s3://, gs://).
package credentials
