// Package commands defines the cardchannel CLI.
//
// Commands
//
//   - readers  List attached PC/SC readers
//   - open     Run the mutual authentication and open a trusted channel
//
// The root command carries the config file path and verbosity; subcommands
// load the yaml config, build the certificate validator and host identity
// from it and talk to the card through the PC/SC transport.
package commands
