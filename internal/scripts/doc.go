// Package scripts отвечает за скрипты редукции инструментов.
//
// Каталог скриптов:
//
//	<root>/<INSTRUMENT>/reduce.py        — скрипт редукции
//	<root>/<INSTRUMENT>/reduce_vars.json — значения по умолчанию
//
// Provider читает скрипт и значения по умолчанию, Watcher следит
// за появлением и удалением скриптов и переключает активность
// инструментов.
package scripts
