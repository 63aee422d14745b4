// Package news provides the content the reader speaks: the wenxuecity
// headline list, article text extracted from a news page, and local text
// or markdown files.
package news
