// archivectl drives the document-analysis pipeline over a personal archive:
// scan discovers PDFs, analyze runs them through extraction and a local or
// remote model behind the privacy gate, status and export read the results.
package main

func main() {
	execute()
}
