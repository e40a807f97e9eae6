// Command offregctl creates, inspects and edits offline Windows registry
// hive files.
package main

func main() {
	execute()
}
