package urls

// Documentation URLs for guides and troubleshooting
// Project guides live on the documentation site at https://muurk.github.io/esptrace/

// GettingStarted is the quick start guide covering installation and
// the first monitor session.
const GettingStarted = "https://muurk.github.io/esptrace/getting-started/"

// TroubleshootingGuide covers a disabled decoder, missing toolchains and
// serial port permissions.
const TroubleshootingGuide = "https://muurk.github.io/esptrace/troubleshooting/"

// ReadingStackDumps explains the exception header and the raw stack block
// printed by the ESP8266 core on a crash.
const ReadingStackDumps = "https://muurk.github.io/esptrace/stack-dumps/"

// PlatformIO references

// BuildConfigurations describes the build_type option. Debug builds keep the
// symbols needed for accurate source locations.
const BuildConfigurations = "https://docs.platformio.org/page/projectconf/build_configurations.html"

// ProjectConfig is the platformio.ini reference.
const ProjectConfig = "https://docs.platformio.org/page/projectconf/index.html"

// ExceptionCauses is the Xtensa exception cause reference used by the
// ESP8266 Arduino core.
const ExceptionCauses = "https://arduino-esp8266.readthedocs.io/en/latest/exception_causes.html"
