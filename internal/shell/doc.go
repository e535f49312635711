/*
Package shell runs an interactive medsh session.

A Session reads lines through a LineReader, interprets the builtins and
hands everything else to a Launcher. Interpretation order, first match wins:

  - empty line: ignored
  - exit: ends the session, flushing aliases
  - history: lists the active ring, then lets the operator pick an entry
  - any other line is recorded into the active ring
  - set user <name>: switches identity
  - alias definition <name>:"<command>": defines an alias
  - a line equal to an alias name is replaced by its expansion once
  - a trailing & runs the program in the background

Builtins take precedence over aliases.
*/
package shell
