// Package llm contains adapters for invoking large language models. Actions
// use them to turn free form user messages into structured parameters: the
// host renders an action's extraction template, sends it to a Client and
// decodes the JSON block found in the reply.
package llm
