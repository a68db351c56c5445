// Package cli implements the mmtf-derive command line.
//
// Commands are cobra commands registered on rootCmd in their init
// functions. Services are injected with SetServices before Execute.
package cli
