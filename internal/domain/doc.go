// Package domain содержит доменные сущности Reducta.
//
// Сущности:
//   - Instrument         — инструмент, с которого приходят данные
//   - Experiment         — эксперимент (RB number), группирует runs
//   - ReductionRun       — один запуск редукции (запись жизненного цикла)
//   - DataLocation       — путь к входному файлу данных
//   - ReductionLocation  — путь к результату редукции
//   - InstrumentVariable — версионируемая переменная конфигурации
//   - RunVariable        — снимок переменных, зафиксированный для run
//
// Машина состояний run описана в status.go: переходы проверяются
// явной таблицей допустимости, нелегальный переход — это ошибка
// оркестрации, а не ситуация для молчаливого исправления.
package domain
